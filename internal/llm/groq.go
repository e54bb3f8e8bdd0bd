package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// GroqClient talks to the Groq-hosted Llama endpoint, which speaks the
// OpenAI chat protocol; only the base URL differs. Text only: the
// formatter never attaches an image for this provider.
type GroqClient struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
	maxTokens   int
}

func NewGroq(apiKey, baseURL, model, system string, temperature float32, maxTokens int) *GroqClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &GroqClient{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		system:      system,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *GroqClient) Generate(ctx context.Context, prompt Prompt, onChunk func(string)) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(prompt.Messages)+1)
	if c.system != "" {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.system,
		})
	}
	for _, m := range prompt.Messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaMsgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), fmt.Errorf("read chat completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
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
