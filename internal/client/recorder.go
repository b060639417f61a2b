package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PedroOSilv/meetResume/internal/audio"
	"github.com/PedroOSilv/meetResume/internal/capture"
	"github.com/PedroOSilv/meetResume/internal/session"
	"github.com/PedroOSilv/meetResume/internal/summary"
)

// Defaults for the recorder
const (
	DefaultPendingWait       = 30 * time.Second
	DefaultAssistantCooldown = 10 * time.Second

	heartbeatTimeout = 10 * time.Second
)

// ErrNotRecording is returned by Stop when Start was never called
var ErrNotRecording = errors.New("recorder is not running")

// Server is the part of the API the recorder depends on
type Server interface {
	Uploader
	StartSession(ctx context.Context, sessionID string) error
	Heartbeat(ctx context.Context, sessionID string) error
	Finalize(ctx context.Context, sessionID string) (*session.FinalResult, error)
	Objection(ctx context.Context, transcript string) (string, error)
}

// RecorderConfig contains configuration for one recording
type RecorderConfig struct {
	SessionID   string // generated when empty
	Segmenter   audio.SegmenterConfig
	Uploads     OrchestratorConfig
	PendingWait time.Duration

	// HeartbeatInterval keeps the session alive while no chunk is uploaded;
	// zero disables heartbeats
	HeartbeatInterval time.Duration

	// Assistant asks the server for suggestions while recording
	Assistant         bool
	AssistantCooldown time.Duration
	OnSuggestion      func(suggestion string)
}

// Outcome is the result of a finished recording
type Outcome struct {
	SessionID   string               `json:"session_id"`
	Result      *session.FinalResult `json:"result,omitempty"`
	Outstanding int                  `json:"outstanding_uploads"`
	Failures    []Failure            `json:"failed_chunks,omitempty"`
	Accumulated string               `json:"accumulated_transcript"`
	Segments    audio.SegmenterStats `json:"segments"`
	Uploads     OrchestratorStats    `json:"uploads"`
}

// Recorder runs capture, segmentation and upload for one meeting
type Recorder struct {
	config       RecorderConfig
	server       Server
	sources      []capture.Source
	logger       *slog.Logger
	orchestrator *Orchestrator

	mu            sync.Mutex
	sessionID     string
	segmenter     *audio.Segmenter
	captureCancel context.CancelFunc
	segmentCancel context.CancelFunc
	captureDone   chan struct{}
	captureErr    error // set before captureDone is closed
	segmentDone   chan struct{}
	stopHeartbeat context.CancelFunc
	heartbeatDone chan struct{}
	stopped       bool

	// assistant watcher state, locked apart from mu since it runs on
	// upload goroutines that Stop waits for
	assistantMu    sync.Mutex
	suggesting     atomic.Bool
	lastSuggestion time.Time
	lastChecked    string
}

// NewRecorder creates a recorder over one or two sources
func NewRecorder(config RecorderConfig, server Server, logger *slog.Logger, sources ...capture.Source) (*Recorder, error) {
	if server == nil {
		return nil, errors.New("server client is required")
	}
	if len(sources) < 1 || len(sources) > 2 {
		return nil, fmt.Errorf("recorder needs one or two sources, got %d", len(sources))
	}
	if config.PendingWait <= 0 {
		config.PendingWait = DefaultPendingWait
	}
	if config.AssistantCooldown <= 0 {
		config.AssistantCooldown = DefaultAssistantCooldown
	}
	if config.Segmenter.SampleRate <= 0 {
		config.Segmenter.SampleRate = audio.DefaultSampleRate
	}

	r := &Recorder{
		config:  config,
		server:  server,
		sources: sources,
		logger:  logger,
	}

	uploads := config.Uploads
	next := uploads.OnTranscript
	uploads.OnTranscript = func(index int, text, accumulated string) {
		if next != nil {
			next(index, text, accumulated)
		}
		if config.Assistant {
			r.maybeSuggest(accumulated)
		}
	}
	r.orchestrator = NewOrchestrator(server, uploads, logger)

	return r, nil
}

// NewSessionID returns an id of the form session_<unix ms>_<random>
func NewSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// SessionID returns the id of the running recording
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Start begins capturing. It returns once every goroutine is running.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segmenter != nil {
		return errors.New("recorder already started")
	}

	r.sessionID = r.config.SessionID
	if r.sessionID == "" {
		r.sessionID = NewSessionID()
	}
	logger := r.logger.With(slog.String("session_id", r.sessionID))

	// the server also creates sessions on first chunk
	if err := r.server.StartSession(ctx, r.sessionID); err != nil {
		logger.Warn("Failed to announce session", slog.String("error", err.Error()))
	}

	buffers := make([]*audio.Buffer, len(r.sources))
	for i, src := range r.sources {
		buffers[i] = audio.NewBuffer(src.Name(), r.config.Segmenter.SampleRate)
	}

	segmenter, err := audio.NewSegmenter(r.config.Segmenter, logger, buffers...)
	if err != nil {
		return fmt.Errorf("failed to create segmenter: %w", err)
	}
	r.segmenter = segmenter

	captureCtx, captureCancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(captureCtx)
	for i, src := range r.sources {
		src, dst := src, buffers[i]
		group.Go(func() error {
			return capture.Pump(groupCtx, logger, src, dst)
		})
	}
	r.captureCancel = captureCancel
	r.captureDone = make(chan struct{})
	go func() {
		r.captureErr = group.Wait()
		close(r.captureDone)
	}()

	segmentCtx, segmentCancel := context.WithCancel(context.Background())
	r.segmentCancel = segmentCancel
	r.segmentDone = make(chan struct{})
	go func() {
		defer close(r.segmentDone)
		segmenter.Run(segmentCtx, func(seg *audio.Segment) {
			logger.Debug("Segment ready",
				slog.Int("chunk_index", seg.Index),
				slog.Duration("duration", seg.Duration),
				slog.Int("bytes", len(seg.Data)),
			)
			r.orchestrator.Submit(r.sessionID, seg.Index, seg.Data)
		})
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	r.stopHeartbeat = stopHeartbeat
	r.heartbeatDone = make(chan struct{})
	if r.config.HeartbeatInterval > 0 {
		go r.heartbeat(heartbeatCtx, logger)
	} else {
		close(r.heartbeatDone)
	}

	logger.Info("Recording started",
		slog.Int("sources", len(r.sources)),
		slog.Duration("interval", r.config.Segmenter.Interval),
	)
	return nil
}

// Done is closed once every source has stopped, whether it failed, reached
// the end of its input or was closed by Stop
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captureDone
}

// Stop ends capture, flushes the final segment, waits a bounded time for
// pending uploads and finalizes the session. Finalize proceeds even when
// uploads are still outstanding; their count is reported in the outcome.
func (r *Recorder) Stop(ctx context.Context) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segmenter == nil || r.stopped {
		return nil, ErrNotRecording
	}
	r.stopped = true
	r.stopHeartbeat()
	<-r.heartbeatDone
	logger := r.logger.With(slog.String("session_id", r.sessionID))

	// closing a source ends its pump once buffered audio is read
	for _, src := range r.sources {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close audio source",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()))
		}
	}
	<-r.captureDone
	if r.captureErr != nil {
		logger.Error("Audio capture failed", slog.String("error", r.captureErr.Error()))
	}
	r.captureCancel()

	// pumps are done, so the final flush sees all captured audio
	r.segmentCancel()
	<-r.segmentDone

	outstanding := r.orchestrator.WaitPending(ctx, r.config.PendingWait)
	if outstanding > 0 {
		logger.Warn("Finalizing with uploads still pending",
			slog.Int("outstanding", outstanding),
			slog.Duration("waited", r.config.PendingWait))
	}

	outcome := &Outcome{
		SessionID:   r.sessionID,
		Outstanding: outstanding,
		Failures:    r.orchestrator.Failures(),
		Accumulated: r.orchestrator.Accumulated(),
		Segments:    r.segmenter.GetStats(),
		Uploads:     r.orchestrator.GetStats(),
	}

	result, err := r.server.Finalize(ctx, r.sessionID)
	if err != nil {
		return outcome, fmt.Errorf("failed to finalize session %s: %w", r.sessionID, err)
	}
	outcome.Result = result

	logger.Info("Recording finalized",
		slog.Int("chunks", result.ChunksProcessed),
		slog.Bool("degraded", result.Degraded),
		slog.Int("failed_chunks", len(outcome.Failures)),
	)
	return outcome, nil
}

// Abort cancels capture and uploads without finalizing
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segmenter == nil || r.stopped {
		return
	}
	r.stopped = true
	r.stopHeartbeat()
	r.captureCancel()
	for _, src := range r.sources {
		_ = src.Close()
	}
	r.segmentCancel()
	r.orchestrator.Abort()
}

// heartbeat pings the server so silence dropped by the segmenter does not
// let the session expire
func (r *Recorder) heartbeat(ctx context.Context, logger *slog.Logger) {
	defer close(r.heartbeatDone)
	ticker := time.NewTicker(r.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reqCtx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
			err := r.server.Heartbeat(reqCtx, r.sessionID)
			cancel()
			if err != nil && ctx.Err() == nil {
				logger.Warn("Session heartbeat failed", slog.String("error", err.Error()))
			}
		}
	}
}

// maybeSuggest asks for an objection once enough new words have arrived
func (r *Recorder) maybeSuggest(accumulated string) {
	r.assistantMu.Lock()
	if summary.CountNewWords(accumulated, r.lastChecked) < summary.MinNewWords ||
		time.Since(r.lastSuggestion) < r.config.AssistantCooldown {
		r.assistantMu.Unlock()
		return
	}
	if !r.suggesting.CompareAndSwap(false, true) {
		r.assistantMu.Unlock()
		return
	}
	r.lastChecked = accumulated
	r.lastSuggestion = time.Now()
	r.assistantMu.Unlock()

	go func() {
		defer r.suggesting.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		suggestion, err := r.server.Objection(ctx, summary.LastWords(accumulated, summary.ContextWords))
		if err != nil {
			r.logger.Warn("Assistant request failed", slog.String("error", err.Error()))
			return
		}
		if r.config.OnSuggestion != nil {
			r.config.OnSuggestion(suggestion)
		}
	}()
}
