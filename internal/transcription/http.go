package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/PedroOSilv/meetResume/internal/retry"
)

// HTTPTranscriber posts chunks as multipart form data to a generic endpoint
type HTTPTranscriber struct {
	config     Config
	httpClient *http.Client
	sem        *semaphore.Weighted

	stats
}

// transcriptionResponse is the JSON body expected from the endpoint
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewHTTPTranscriber creates a multipart transcription client
func NewHTTPTranscriber(config Config) (*HTTPTranscriber, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	applyDefaults(&config)

	if config.OutputFormat == "" {
		config.OutputFormat = "json"
	}

	return &HTTPTranscriber{
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
		sem:        semaphore.NewWeighted(int64(config.MaxConcurrent)),
		stats:      stats{provider: "http"},
	}, nil
}

func applyDefaults(config *Config) {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Transcribe sends one chunk to the configured endpoint
func (c *HTTPTranscriber) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", retry.Terminal(ErrEmptyAudio)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	start := c.begin()
	text, err := c.doRequest(ctx, req)
	c.end(start, err)

	return text, err
}

// doRequest performs a single HTTP request to the transcription API
func (c *HTTPTranscriber) doRequest(ctx context.Context, req Request) (string, error) {
	body, contentType, err := c.createMultipartRequest(req)
	if err != nil {
		return "", retry.Terminal(fmt.Errorf("failed to create multipart request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", retry.Terminal(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "meetResume/1.0")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", retry.Transient(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.Transient(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", retry.ForStatus(resp.StatusCode,
			fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	if c.config.OutputFormat == "text" || !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return strings.TrimSpace(string(respBody)), nil
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", retry.Terminal(fmt.Errorf("failed to parse response JSON: %w", err))
	}

	return strings.TrimSpace(parsed.Text), nil
}

// createMultipartRequest creates a multipart/form-data request body
func (c *HTTPTranscriber) createMultipartRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"model":           c.config.Model,
		"response_format": c.config.OutputFormat,
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
