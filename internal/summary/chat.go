package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/PedroOSilv/meetResume/internal/retry"
)

// Message roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat turn
type Message struct {
	Role    string
	Content string
}

// Params tunes a single completion
type Params struct {
	MaxTokens   int
	Temperature float32
}

// ChatModel produces a completion for a conversation
type ChatModel interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

// OpenAIConfig configures the OpenAI chat adapter
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o-mini"

// OpenAIChat implements ChatModel with the chat completions API
type OpenAIChat struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIChat creates a chat adapter
func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIChat{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends the conversation and returns the first choice
func (a *OpenAIChat) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", classifyOpenAIError(err))
	}

	if len(resp.Choices) == 0 {
		return "", retry.Transient(fmt.Errorf("openai chat completion: no response choices"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retry.ForStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retry.ForStatus(reqErr.HTTPStatusCode, err)
	}

	return err
}
