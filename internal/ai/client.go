// Package ai implements the language-model backed pipeline capabilities:
// PII scrubbing, categorization, and entity extraction.
package ai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the model used for scrubbing, categorization, and
// entity extraction.
const DefaultChatModel = openai.GPT4o

// ChatAPI defines the single-turn completion interface the capabilities
// are built on.
type ChatAPI interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// ChatClient is the go-openai backed ChatAPI implementation.
type ChatClient struct {
	client *openai.Client
	model  string
}

// NewChatClient creates a ChatClient. An empty model selects the default.
func NewChatClient(apiKey, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Complete sends one system+user exchange and returns the raw response text.
func (c *ChatClient) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// truncateRunes caps text at max runes, appending a marker when trimmed.
func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "\n\n[... text truncated ...]"
}
