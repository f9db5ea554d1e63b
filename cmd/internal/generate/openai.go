package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// minWireTemperature stands in for a requested temperature of zero.
const minWireTemperature = 0.01

// ErrMissingAPIKey is returned by NewOpenAIClient for a blank key.
var ErrMissingAPIKey = errors.New("generation API key missing")

// OpenAIClient is a Completer backed by the OpenAI chat completions API or a
// compatible gateway.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client. An empty baseURL keeps the library default.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(apiKey)
	if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
		cfg.BaseURL = u
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}, nil
}

// Complete sends the system and user messages and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, in Completion) (string, error) {
	system := in.System
	if system == "" {
		system = SystemRole
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	// go-openai drops Temperature when it is zero (omitempty).
	temp := in.Temperature
	if temp < minWireTemperature {
		temp = minWireTemperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: in.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: in.User},
		},
		Temperature: temp,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
