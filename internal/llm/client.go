package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider is a closed set of logical model backends.
type Provider string

const (
	// ProviderGoogle is the vision-capable Gemini backend.
	ProviderGoogle Provider = "google"
	// ProviderGroq is the text-only Llama backend.
	ProviderGroq Provider = "groq"
)

// ErrUnsupportedProvider is returned for any provider name outside the
// known set.
var ErrUnsupportedProvider = errors.New("unsupported provider")

func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(s)) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGroq:
		return ProviderGroq, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}

// Vision reports whether the provider accepts image input.
func (p Provider) Vision() bool { return p == ProviderGoogle }

func (p Provider) String() string { return string(p) }

type Message struct {
	Role    string
	Content string
}

// Image is a decoded attachment for a vision-capable request.
type Image struct {
	MIME string
	Data []byte
}

// Prompt is a fully formatted provider request. Image, when non-nil,
// belongs to the final message only.
type Prompt struct {
	Messages []Message
	Image    *Image
}

// Client generates one assistant reply and relays partial text to
// onChunk in arrival order. The returned string is the concatenation of
// every chunk delivered. Cancelling ctx aborts the stream.
type Client interface {
	Generate(ctx context.Context, prompt Prompt, onChunk func(string)) (string, error)
}
