package llm

import "fmt"

// MaxContextWindow bounds how many trailing turns are sent upstream.
const MaxContextWindow = 15

// BuildPrompt converts a provider-agnostic history plus optional image
// attachment into a provider request. Pure: identical inputs always
// yield identical prompts.
//
// Rules:
//   - only the trailing MaxContextWindow turns survive; oldest drop first
//   - only the final turn may carry the image
//   - a text-only provider never sees the image in any form, not even as
//     a textual hint; this is a capability fence, not degraded input
func BuildPrompt(history []Message, provider Provider, imageURI string) (Prompt, error) {
	switch provider {
	case ProviderGoogle, ProviderGroq:
	default:
		return Prompt{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if len(history) > MaxContextWindow {
		history = history[len(history)-MaxContextWindow:]
	}
	msgs := make([]Message, len(history))
	copy(msgs, history)

	p := Prompt{Messages: msgs}
	if imageURI != "" && provider.Vision() && len(msgs) > 0 {
		img, err := DecodeDataURI(imageURI)
		if err != nil {
			return Prompt{}, fmt.Errorf("format image: %w", err)
		}
		p.Image = &img
	}
	return p, nil
}
