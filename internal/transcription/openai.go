package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/PedroOSilv/meetResume/internal/retry"
)

// OpenAITranscriber calls the Whisper transcription endpoint
type OpenAITranscriber struct {
	client *openai.Client
	config Config
	sem    *semaphore.Weighted

	stats
}

// NewOpenAITranscriber creates a Whisper client. An empty endpoint uses the
// public OpenAI API.
func NewOpenAITranscriber(config Config) (*OpenAITranscriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	applyDefaults(&config)

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Endpoint != "" {
		clientConfig.BaseURL = config.Endpoint
	}
	clientConfig.HTTPClient = newHTTPClient(config.Timeout)

	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
		stats:  stats{provider: "openai"},
	}, nil
}

// Transcribe sends one chunk to Whisper
func (t *OpenAITranscriber) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", retry.Terminal(ErrEmptyAudio)
	}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer t.sem.Release(1)

	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	start := t.begin()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.config.Model,
		Reader:   bytes.NewReader(req.Audio),
		FilePath: filename,
		Language: req.Language,
	})
	if err != nil {
		err = classifyOpenAIError(err)
	}
	t.end(start, err)

	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// classifyOpenAIError maps go-openai errors onto retry kinds by HTTP status
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "insufficient_quota" || apiErr.Type == "insufficient_quota" {
			return retry.Terminal(fmt.Errorf("%w: %w", ErrQuotaExceeded, err))
		}
		return retry.ForStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retry.ForStatus(reqErr.HTTPStatusCode, err)
	}

	if errors.Is(err, context.Canceled) {
		return retry.Terminal(err)
	}
	return retry.Transient(err)
}
