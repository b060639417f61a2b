package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/session"
)

// DefaultMaxConcurrentUploads bounds in-flight uploads when unset
const DefaultMaxConcurrentUploads = 4

// Uploader sends one chunk to the server
type Uploader interface {
	UploadChunk(ctx context.Context, sessionID string, index int, data []byte) (*session.ChunkResult, error)
}

// OrchestratorConfig contains upload concurrency and retry settings
type OrchestratorConfig struct {
	MaxConcurrent int
	Retry         retry.Policy

	// OnTranscript is called after every successful upload with the chunk
	// text and the accumulated transcript. It runs on the upload goroutine.
	OnTranscript func(index int, text, accumulated string)
}

// Failure records a chunk whose upload failed after retries
type Failure struct {
	SessionID string     `json:"session_id"`
	Index     int        `json:"chunk_index"`
	Kind      retry.Kind `json:"-"`
	Error     string     `json:"error"`
}

// OrchestratorStats represents upload statistics
type OrchestratorStats struct {
	Submitted uint64 `json:"submitted"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Pending   int    `json:"pending"`
}

// Orchestrator uploads chunks concurrently without blocking the caller.
// Every submitted chunk is tracked as pending from before its first request
// until it succeeds or fails for good; completions wake WaitPending.
type Orchestrator struct {
	uploader Uploader
	logger   *slog.Logger
	config   OrchestratorConfig
	sem      *semaphore.Weighted

	// uploads outlive the recording; only Abort cancels them
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	pending     map[string]struct{}
	changed     chan struct{} // closed and replaced whenever pending shrinks
	accumulated []string
	failures    []Failure
	stats       OrchestratorStats
}

// NewOrchestrator creates an upload orchestrator
func NewOrchestrator(uploader Uploader, config OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrentUploads
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = retry.DefaultPolicy()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		uploader: uploader,
		logger:   logger,
		config:   config,
		sem:      semaphore.NewWeighted(int64(config.MaxConcurrent)),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]struct{}),
		changed:  make(chan struct{}),
	}
}

func pendingKey(sessionID string, index int) string {
	return fmt.Sprintf("%s:%d", sessionID, index)
}

// Submit registers the chunk as pending and uploads it in the background
func (o *Orchestrator) Submit(sessionID string, index int, data []byte) {
	key := pendingKey(sessionID, index)

	o.mu.Lock()
	o.pending[key] = struct{}{}
	o.stats.Submitted++
	o.mu.Unlock()

	go o.upload(key, sessionID, index, data)
}

func (o *Orchestrator) upload(key, sessionID string, index int, data []byte) {
	defer o.complete(key)

	logger := o.logger.With(
		slog.String("session_id", sessionID),
		slog.Int("chunk_index", index),
	)

	if err := o.sem.Acquire(o.ctx, 1); err != nil {
		o.fail(logger, sessionID, index, retry.Terminal(err))
		return
	}
	defer o.sem.Release(1)

	policy := o.config.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("Chunk upload failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	start := time.Now()
	result, err := retry.DoValue(o.ctx, policy, func(ctx context.Context) (*session.ChunkResult, error) {
		return o.uploader.UploadChunk(ctx, sessionID, index, data)
	})
	if err != nil {
		o.fail(logger, sessionID, index, err)
		return
	}

	text := strings.TrimSpace(result.Transcript)

	o.mu.Lock()
	o.stats.Succeeded++
	if text != "" {
		o.accumulated = append(o.accumulated, text)
	}
	accumulated := strings.Join(o.accumulated, " ")
	o.mu.Unlock()

	logger.Info("Chunk transcribed",
		slog.Int("bytes", len(data)),
		slog.Int("text_length", len(text)),
		slog.Duration("duration", time.Since(start)),
	)

	if o.config.OnTranscript != nil {
		o.config.OnTranscript(index, text, accumulated)
	}
}

func (o *Orchestrator) fail(logger *slog.Logger, sessionID string, index int, err error) {
	o.mu.Lock()
	o.stats.Failed++
	o.failures = append(o.failures, Failure{
		SessionID: sessionID,
		Index:     index,
		Kind:      retry.KindOf(err),
		Error:     err.Error(),
	})
	o.mu.Unlock()

	logger.Error("Chunk upload failed, its text is lost",
		slog.String("error", err.Error()),
		slog.String("kind", retry.KindOf(err).String()),
	)
}

// complete removes the pending entry and wakes waiters
func (o *Orchestrator) complete(key string) {
	o.mu.Lock()
	delete(o.pending, key)
	close(o.changed)
	o.changed = make(chan struct{})
	o.mu.Unlock()
}

// Pending returns the number of uploads not yet confirmed
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// WaitPending blocks until no upload is pending, timeout passes or ctx is
// done, and returns the number still outstanding
func (o *Orchestrator) WaitPending(ctx context.Context, timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		o.mu.Lock()
		n := len(o.pending)
		changed := o.changed
		o.mu.Unlock()

		if n == 0 {
			return 0
		}

		select {
		case <-changed:
		case <-timer.C:
			return o.Pending()
		case <-ctx.Done():
			return o.Pending()
		}
	}
}

// Accumulated returns the advisory transcript in completion order
func (o *Orchestrator) Accumulated() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.accumulated, " ")
}

// Failures returns the chunks that could not be uploaded
func (o *Orchestrator) Failures() []Failure {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Failure(nil), o.failures...)
}

// GetStats returns current upload statistics
func (o *Orchestrator) GetStats() OrchestratorStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := o.stats
	stats.Pending = len(o.pending)
	return stats
}

// Abort cancels every in-flight upload
func (o *Orchestrator) Abort() {
	o.cancel()
}
