package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"turbolearn/internal/config"
)

func TestFactoryCreateClient(t *testing.T) {
	cfg := &config.Config{
		GroqAPIKey:  "gsk-test",
		GroqBaseURL: "https://api.groq.com/openai/v1",
		GroqModel:   "llama-3.3-70b-versatile",
		GoogleModel: "gemini-2.5-flash",
	}
	f := NewFactory(cfg, "")
	ctx := context.Background()

	c, err := f.CreateClient(ctx, ProviderGroq)
	require.NoError(t, err)
	require.IsType(t, &GroqClient{}, c)

	// missing key must fail resolution, not produce a broken client
	_, err = f.CreateClient(ctx, ProviderGoogle)
	require.Error(t, err)

	_, err = f.CreateClient(ctx, Provider("yandex"))
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestFactoryDefaultSystemPrompt(t *testing.T) {
	f := NewFactory(&config.Config{}, "")
	require.Equal(t, DefaultSystemPrompt, f.systemPrompt)

	f = NewFactory(&config.Config{}, "custom persona")
	require.Equal(t, "custom persona", f.systemPrompt)
}
