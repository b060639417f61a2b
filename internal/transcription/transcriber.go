package transcription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Transcription errors
var (
	// ErrEmptyAudio is returned when a request carries no audio
	ErrEmptyAudio = errors.New("audio data is empty")

	// ErrQuotaExceeded marks a provider account out of credit; never retried
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// Request is one audio chunk to transcribe
type Request struct {
	Audio    []byte
	Filename string // used by providers to infer the container format
	Language string // ISO-639-1, empty for auto-detect
}

// Transcriber turns an audio chunk into text
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// Config contains transcription provider configuration
type Config struct {
	Provider      string // "openai" or "http"
	Endpoint      string // base URL for openai, full URL for http
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
	OutputFormat  string // "json" or "text", http provider only
}

// Default provider values
const (
	DefaultModel         = "whisper-1"
	DefaultTimeout       = 60 * time.Second
	DefaultMaxConcurrent = 10
)

// New builds the transcriber selected by config.Provider
func New(config Config) (Transcriber, error) {
	switch config.Provider {
	case "", "openai":
		return NewOpenAITranscriber(config)
	case "http":
		return NewHTTPTranscriber(config)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", config.Provider)
	}
}

// StatsProvider is implemented by transcribers that keep request statistics
type StatsProvider interface {
	GetStats() ClientStats
}

// ClientStats represents client statistics
type ClientStats struct {
	Provider        string        `json:"provider"`
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

type stats struct {
	provider        string
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration
	active          int

	mu sync.RWMutex
}

func (s *stats) begin() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.active++
	return time.Now()
}

func (s *stats) end(start time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active--
	if err != nil {
		s.failedRequests++
		return
	}

	s.successRequests++
	responseTime := time.Since(start)
	if s.avgResponseTime == 0 {
		s.avgResponseTime = responseTime
	} else {
		s.avgResponseTime = (s.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (s *stats) GetStats() ClientStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := float64(0)
	if s.totalRequests > 0 {
		successRate = float64(s.successRequests) / float64(s.totalRequests) * 100
	}

	return ClientStats{
		Provider:        s.provider,
		TotalRequests:   s.totalRequests,
		SuccessRequests: s.successRequests,
		FailedRequests:  s.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: s.avgResponseTime,
		ActiveRequests:  s.active,
	}
}
