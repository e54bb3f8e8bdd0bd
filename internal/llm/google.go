package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleClient talks to Gemini through the GenAI SDK. It is the only
// vision-capable binding.
type GoogleClient struct {
	client          *genai.Client
	model           string
	system          string
	temperature     float32
	maxOutputTokens int32
}

func NewGoogle(ctx context.Context, apiKey, model, system string, temperature float32, maxOutputTokens int32) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GoogleClient{
		client:          client,
		model:           model,
		system:          system,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
	}, nil
}

func (c *GoogleClient) Generate(ctx context.Context, prompt Prompt, onChunk func(string)) (string, error) {
	contents := make([]*genai.Content, 0, len(prompt.Messages))
	for i, m := range prompt.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		if prompt.Image != nil && i == len(prompt.Messages)-1 {
			parts := []*genai.Part{
				genai.NewPartFromText(m.Content),
				genai.NewPartFromBytes(prompt.Image.Data, prompt.Image.MIME),
			}
			contents = append(contents, genai.NewContentFromParts(parts, role))
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](c.temperature),
		MaxOutputTokens: c.maxOutputTokens,
	}
	if c.system != "" {
		config.SystemInstruction = genai.NewContentFromText(c.system, genai.RoleUser)
	}

	var sb strings.Builder
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			return sb.String(), fmt.Errorf("gemini stream: %w", err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	return sb.String(), nil
}
