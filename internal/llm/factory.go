package llm

import (
	"context"
	"fmt"

	"turbolearn/internal/config"
)

// Fixed invocation parameters. These are static configuration, not part
// of any gating decision.
const (
	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 2048
)

// DefaultSystemPrompt is used when no prompt file is configured. The
// per-provider instruction differs only in tone and format rules.
const DefaultSystemPrompt = `You are TurboLearn AI, an expert academic tutor.
1. Tone: Professional, direct, and encouraging.
2. Format: Use Markdown. Bold key terms.
3. Context: If an image is provided, analyze it in detail.`

// Factory creates provider clients with consistent parameters.
type Factory struct {
	cfg          *config.Config
	systemPrompt string
}

func NewFactory(cfg *config.Config, systemPrompt string) *Factory {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Factory{cfg: cfg, systemPrompt: systemPrompt}
}

// CreateClient resolves a logical provider to a concrete model binding.
func (f *Factory) CreateClient(ctx context.Context, provider Provider) (Client, error) {
	switch provider {
	case ProviderGoogle:
		return NewGoogle(ctx, f.cfg.GoogleAPIKey, f.cfg.GoogleModel, f.systemPrompt,
			defaultTemperature, defaultMaxOutputTokens)
	case ProviderGroq:
		return NewGroq(f.cfg.GroqAPIKey, f.cfg.GroqBaseURL, f.cfg.GroqModel, f.systemPrompt,
			defaultTemperature, defaultMaxOutputTokens), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}
