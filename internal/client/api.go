package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/session"
)

// Default request timeouts
const (
	DefaultTimeout         = 120 * time.Second
	DefaultFinalizeTimeout = 8 * time.Minute
)

// APIConfig configures an APIClient
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration // per request

	// FinalizeTimeout covers the server's whole summarization budget
	FinalizeTimeout time.Duration
}

// APIClient talks to the meetresume server
type APIClient struct {
	baseURL         string
	token           string
	timeout         time.Duration
	finalizeTimeout time.Duration
	httpClient      *http.Client
}

// APIError is a non-2xx reply from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the server at cfg.BaseURL
func NewAPIClient(cfg APIConfig) (*APIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = DefaultFinalizeTimeout
	}

	return &APIClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.Token,
		timeout:         cfg.Timeout,
		finalizeTimeout: cfg.FinalizeTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// UploadChunk sends one WAV segment and returns the server's transcription
func (c *APIClient) UploadChunk(ctx context.Context, sessionID string, index int, data []byte) (*session.ChunkResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("audio", fmt.Sprintf("chunk_%d.wav", index))
	if err != nil {
		return nil, retry.Terminal(fmt.Errorf("failed to create form file: %w", err))
	}
	if _, err := fileWriter.Write(data); err != nil {
		return nil, retry.Terminal(fmt.Errorf("failed to write audio data: %w", err))
	}
	if err := writer.WriteField("sessionId", sessionID); err != nil {
		return nil, retry.Terminal(err)
	}
	if err := writer.WriteField("chunkIndex", strconv.Itoa(index)); err != nil {
		return nil, retry.Terminal(err)
	}
	if err := writer.Close(); err != nil {
		return nil, retry.Terminal(fmt.Errorf("failed to close multipart writer: %w", err))
	}

	var result session.ChunkResult
	if err := c.do(ctx, c.timeout, http.MethodPost, "/upload-chunk", writer.FormDataContentType(), &buf, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Finalize asks the server to close the session and summarize it
func (c *APIClient) Finalize(ctx context.Context, sessionID string) (*session.FinalResult, error) {
	var result session.FinalResult
	if err := c.postJSON(ctx, c.finalizeTimeout, "/finalize", map[string]string{"sessionId": sessionID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartSession registers the session before the first chunk
func (c *APIClient) StartSession(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, c.timeout, "/sessions", map[string]string{"sessionId": sessionID}, nil)
}

// Heartbeat records activity on a session between uploads
func (c *APIClient) Heartbeat(ctx context.Context, sessionID string) error {
	return c.do(ctx, c.timeout, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/heartbeat", "", nil, nil)
}

// Objection asks the live assistant about the transcript tail. An empty
// string means there is nothing to suggest.
func (c *APIClient) Objection(ctx context.Context, transcript string) (string, error) {
	var result struct {
		Objection string `json:"objection"`
	}
	if err := c.postJSON(ctx, c.timeout, "/api/assistant/objection", map[string]string{"transcript": transcript}, &result); err != nil {
		return "", err
	}
	return result.Objection, nil
}

// Health checks that the server is reachable
func (c *APIClient) Health(ctx context.Context) error {
	return c.do(ctx, c.timeout, http.MethodGet, "/health", "", nil, nil)
}

func (c *APIClient) postJSON(ctx context.Context, timeout time.Duration, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return retry.Terminal(fmt.Errorf("failed to encode request: %w", err))
	}
	return c.do(ctx, timeout, http.MethodPost, path, "application/json", bytes.NewReader(data), out)
}

// do performs one request. Errors carry a retry kind: network failures,
// 408, 429 and 5xx are transient, other 4xx are terminal. timeout covers
// the whole exchange including the response body.
func (c *APIClient) do(ctx context.Context, timeout time.Duration, method, path, contentType string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return retry.Terminal(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "meetResume-recorder/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return retry.Terminal(err)
		}
		return retry.Transient(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Transient(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return retry.ForStatus(resp.StatusCode, parseAPIError(resp.StatusCode, respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return retry.Terminal(fmt.Errorf("failed to parse response JSON: %w", err))
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		apiErr.Code = parsed.Error
		apiErr.Message = parsed.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
