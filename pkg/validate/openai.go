package validate

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient speaks the OpenAI chat-completion protocol, typically against
// a local llama.cpp or LM Studio endpoint. It implements rule.ModelClient.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client. baseURL overrides the hosted endpoint
// when non-empty; apiKey may be a placeholder for local servers.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

// Infer sends one user prompt and returns the completion text. Context
// cancellation comes back as ctx.Err() so callers can tell an aborted pass
// from a failed one.
func (c *OpenAIClient) Infer(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("validate: inference: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("validate: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// Available probes the endpoint with a model listing.
func (c *OpenAIClient) Available(ctx context.Context) bool {
	_, err := c.client.ListModels(ctx)
	return err == nil
}
