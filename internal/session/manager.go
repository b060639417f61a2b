package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PedroOSilv/meetResume/internal/audio"
	"github.com/PedroOSilv/meetResume/internal/metrics"
	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/summary"
	"github.com/PedroOSilv/meetResume/internal/transcription"
)

// Manager errors
var (
	// ErrValidation is wrapped by every input validation failure
	ErrValidation = errors.New("invalid request")

	// ErrEmptyTranscript is returned when finalizing a session with no text
	ErrEmptyTranscript = fmt.Errorf("%w: no transcription available", ErrValidation)

	// ErrFinalizing is returned for chunks that arrive while a session is finalizing
	ErrFinalizing = errors.New("session is finalizing")

	// ErrTranscription wraps a chunk transcription that failed after retries
	ErrTranscription = errors.New("transcription failed")

	// ErrNoSpeech is returned by TranscribeOnce when the provider finds no text
	ErrNoSpeech = fmt.Errorf("%w: no speech found in audio", ErrValidation)
)

// Default manager values
const (
	DefaultIdleTimeout      = 30 * time.Minute
	DefaultSweepInterval    = 5 * time.Minute
	DefaultSummarizeTimeout = 2 * time.Minute
)

// stagedPrefix names every chunk file written to the upload directory
const stagedPrefix = "chunk_"

// allowedExtensions are the audio containers accepted for upload
var allowedExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".mp4": true, ".m4a": true,
	".webm": true, ".ogg": true, ".mpeg": true, ".mpga": true,
}

// Summarizer produces the final analysis of a transcript
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Archiver persists finished sessions. It is only called after finalization.
type Archiver interface {
	Archive(ctx context.Context, s *Session, result *FinalResult) error
}

// Options configures a Manager
type Options struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	UploadDir       string
	Language        string
	TranscribeRetry retry.Policy
	SummarizeRetry  retry.Policy

	// SummarizeTimeout bounds one summarization attempt
	SummarizeTimeout time.Duration

	// Now and Release are replaceable for tests
	Now     func() time.Time
	Release func(handle string) error
}

// ChunkUpload is one uploaded chunk
type ChunkUpload struct {
	SessionID string
	Index     int
	Audio     []byte
	Filename  string
}

// ChunkResult is returned after a chunk has been transcribed and stored
type ChunkResult struct {
	Transcript            string `json:"transcript"`
	ChunkIndex            int    `json:"chunkIndex"`
	AccumulatedTranscript string `json:"accumulatedTranscript"`
}

// FinalResult is the outcome of finalizing a session
type FinalResult struct {
	SessionID        string           `json:"sessionId"`
	FullTranscript   string           `json:"fullTranscript"`
	Analysis         string           `json:"analysis"`
	ChunksProcessed  int              `json:"chunksProcessed"`
	CompressionStats CompressionStats `json:"compressionStats"`
	Degraded         bool             `json:"degraded"`
	Duration         time.Duration    `json:"duration"`
}

// ManagerStats represents manager statistics for monitoring
type ManagerStats struct {
	ActiveSessions  int    `json:"active_sessions"`
	SessionsCreated uint64 `json:"sessions_created"`
	ChunksProcessed uint64 `json:"chunks_processed"`
	ChunksFailed    uint64 `json:"chunks_failed"`
	Finalized       uint64 `json:"finalized"`
	Degraded        uint64 `json:"degraded"`
	Expired         uint64 `json:"expired"`
	ReleaseFailures uint64 `json:"release_failures"`
	OrphansRemoved  uint64 `json:"orphans_removed"`
}

// Manager owns the session store, the reaper and the collaborators used to
// transcribe chunks and summarize finished sessions
type Manager struct {
	store       Store
	logger      *slog.Logger
	opts        Options
	transcriber transcription.Transcriber
	summarizer  Summarizer
	archiver    Archiver
	metrics     *metrics.Metrics

	stats   ManagerStats
	statsMu sync.Mutex

	// Reaper management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a manager and starts its reaper.
// archiver and m may be nil.
func NewManager(logger *slog.Logger, store Store, opts Options, transcriber transcription.Transcriber,
	summarizer Summarizer, archiver Archiver, m *metrics.Metrics) (*Manager, error) {

	if store == nil || transcriber == nil || summarizer == nil {
		return nil, fmt.Errorf("store, transcriber and summarizer are required")
	}

	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(os.TempDir(), "meetresume-uploads")
	}
	if opts.TranscribeRetry.MaxAttempts == 0 {
		opts.TranscribeRetry = retry.DefaultPolicy()
	}
	if opts.SummarizeRetry.MaxAttempts == 0 {
		opts.SummarizeRetry = retry.DefaultPolicy()
	}
	if opts.SummarizeTimeout <= 0 {
		opts.SummarizeTimeout = DefaultSummarizeTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Release == nil {
		opts.Release = removeFile
	}

	if err := os.MkdirAll(opts.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", opts.UploadDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		store:       store,
		logger:      logger,
		opts:        opts,
		transcriber: transcriber,
		summarizer:  summarizer,
		archiver:    archiver,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
		cleanup:     make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Start creates the session if it does not exist yet and records activity
func (m *Manager) Start(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrValidation)
	}

	sess, err := m.store.Update(ctx, id, true, func(s *Session) error {
		if s.State == StateFinalizing {
			return ErrFinalizing
		}
		m.touch(s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Session started", slog.String("session_id", id))
	return sess, nil
}

// touch bumps activity and counts the session as created on first use
func (m *Manager) touch(s *Session) {
	if s.CreatedAt.IsZero() {
		m.metrics.RecordSessionCreated()
		m.bumpStats(func(st *ManagerStats) { st.SessionsCreated++ })
	}
	s.touch(m.opts.Now())
}

// SubmitChunk transcribes one chunk and stores its text at its index.
// The session is created on the first chunk. Transcription happens outside
// any session lock.
func (m *Manager) SubmitChunk(ctx context.Context, up ChunkUpload) (*ChunkResult, error) {
	ext, err := validateUpload(up)
	if err != nil {
		m.metrics.RecordChunkRejected("invalid")
		return nil, err
	}
	wav, err := inspectWAV(up)
	if err != nil {
		m.metrics.RecordChunkRejected("invalid")
		return nil, err
	}

	handle, err := m.writeTemp(up, ext)
	if err != nil {
		return nil, err
	}

	_, err = m.store.Update(ctx, up.SessionID, true, func(s *Session) error {
		if s.State == StateFinalizing {
			return ErrFinalizing
		}
		m.touch(s)
		s.AddTempResource(handle)
		return nil
	})
	if err != nil {
		m.release(up.SessionID, []string{handle})
		if errors.Is(err, ErrFinalizing) {
			m.metrics.RecordChunkRejected("finalizing")
		}
		return nil, err
	}

	logger := m.logger.With(
		slog.String("session_id", up.SessionID),
		slog.Int("chunk_index", up.Index),
	)

	text, err := m.transcribe(ctx, logger, up)
	if err != nil {
		m.bumpStats(func(st *ManagerStats) { st.ChunksFailed++ })
		return nil, err
	}

	sess, err := m.store.Update(ctx, up.SessionID, false, func(s *Session) error {
		if s.State == StateFinalizing {
			return ErrFinalizing
		}
		s.PutChunk(Chunk{
			Index:      up.Index,
			Text:       text,
			Bytes:      int64(len(up.Audio)),
			ReceivedAt: m.opts.Now(),
		})
		s.touch(m.opts.Now())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrFinalizing) {
			m.metrics.RecordChunkRejected("finalizing")
		}
		logger.Warn("Chunk transcribed but session is no longer accepting chunks",
			slog.String("error", err.Error()))
		return nil, err
	}

	m.metrics.RecordChunkReceived(len(up.Audio))
	m.bumpStats(func(st *ManagerStats) { st.ChunksProcessed++ })

	attrs := []any{
		slog.Int("text_length", len(text)),
		slog.Int("chunks", len(sess.Chunks)),
	}
	if wav != nil {
		attrs = append(attrs, slog.Float64("audio_seconds", wav.Duration))
	}
	logger.Info("Chunk transcription stored", attrs...)

	return &ChunkResult{
		Transcript:            text,
		ChunkIndex:            up.Index,
		AccumulatedTranscript: sess.AccumulatedText(),
	}, nil
}

func validateUpload(up ChunkUpload) (string, error) {
	if strings.TrimSpace(up.SessionID) == "" {
		return "", fmt.Errorf("%w: sessionId is required", ErrValidation)
	}
	if up.Index < 0 {
		return "", fmt.Errorf("%w: chunkIndex must be non-negative, got %d", ErrValidation, up.Index)
	}
	if len(up.Audio) == 0 {
		return "", fmt.Errorf("%w: audio chunk is empty", ErrValidation)
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	if ext == "" {
		return ".wav", nil
	}
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported audio type %q", ErrValidation, ext)
	}
	return ext, nil
}

// inspectWAV reads the header of .wav uploads. Data that cannot be a WAV file
// is rejected; valid files with extra chunks go to the provider unread.
func inspectWAV(up ChunkUpload) (*audio.WAVInfo, error) {
	if !strings.EqualFold(filepath.Ext(up.Filename), ".wav") {
		return nil, nil
	}
	info, err := audio.GetWAVInfo(up.Audio)
	if errors.Is(err, audio.ErrInvalidWAV) {
		return nil, fmt.Errorf("%w: corrupt WAV upload: %v", ErrValidation, err)
	}
	if err != nil {
		return nil, nil
	}
	return info, nil
}

func (m *Manager) writeTemp(up ChunkUpload, ext string) (string, error) {
	path := filepath.Join(m.opts.UploadDir, fmt.Sprintf("%s%d_%s%s", stagedPrefix, up.Index, uuid.NewString(), ext))
	if err := os.WriteFile(path, up.Audio, 0o600); err != nil {
		return "", fmt.Errorf("failed to store chunk: %w", err)
	}
	return path, nil
}

func (m *Manager) transcribe(ctx context.Context, logger *slog.Logger, up ChunkUpload) (string, error) {
	policy := m.opts.TranscribeRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		m.metrics.RecordTranscriptionRetry()
		logger.Warn("Transcription attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	filename := up.Filename
	if filename == "" {
		filename = fmt.Sprintf("chunk_%d.wav", up.Index)
	}

	m.metrics.RecordTranscriptionRequest()
	start := time.Now()
	text, err := retry.DoValue(ctx, policy, func(ctx context.Context) (string, error) {
		return m.transcriber.Transcribe(ctx, transcription.Request{
			Audio:    up.Audio,
			Filename: filename,
			Language: m.opts.Language,
		})
	})
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordTranscriptionFailure(duration.Seconds())
		logger.Error("Transcription failed",
			slog.String("error", err.Error()),
			slog.String("kind", retry.KindOf(err).String()),
			slog.Float64("duration", duration.Seconds()),
		)
		return "", &TranscriptionError{Kind: retry.KindOf(err), Err: err}
	}

	m.metrics.RecordTranscriptionSuccess(duration.Seconds())
	return text, nil
}

// TranscribeOnce transcribes a standalone recording without creating a
// session. The upload is staged in the upload directory and removed before
// returning.
func (m *Manager) TranscribeOnce(ctx context.Context, data []byte, filename string) (string, error) {
	up := ChunkUpload{SessionID: "once", Audio: data, Filename: filename}
	ext, err := validateUpload(up)
	if err != nil {
		m.metrics.RecordChunkRejected("invalid")
		return "", err
	}
	wav, err := inspectWAV(up)
	if err != nil {
		m.metrics.RecordChunkRejected("invalid")
		return "", err
	}

	handle, err := m.writeTemp(up, ext)
	if err != nil {
		return "", err
	}
	defer m.release("", []string{handle})

	logger := m.logger.With(slog.String("filename", filename))
	if wav != nil {
		logger = logger.With(slog.Float64("audio_seconds", wav.Duration))
	}
	text, err := m.transcribe(ctx, logger, up)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// TranscriptionError reports a chunk whose transcription failed after retries
type TranscriptionError struct {
	Kind retry.Kind
	Err  error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTranscription, e.Err)
}

// Unwrap exposes both ErrTranscription and the provider error
func (e *TranscriptionError) Unwrap() []error {
	return []error{ErrTranscription, e.Err}
}

// Get returns the session and records the lookup as activity
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Update(ctx, id, false, func(s *Session) error {
		s.touch(m.opts.Now())
		return nil
	})
}

// Peek returns the session without touching it
func (m *Manager) Peek(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// List returns all sessions without touching them
func (m *Manager) List(ctx context.Context) ([]*Session, error) {
	return m.store.List(ctx)
}

// ActiveCount returns the number of stored sessions
func (m *Manager) ActiveCount(ctx context.Context) int {
	sessions, err := m.store.List(ctx)
	if err != nil {
		return 0
	}
	return len(sessions)
}

// Finalize produces the transcript and analysis of a session and removes it.
// A session can be finalized once; concurrent and later calls see ErrNotFound.
// When summarization keeps failing the result carries a degraded fallback
// analysis instead of an error.
func (m *Manager) Finalize(ctx context.Context, id string) (*FinalResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrValidation)
	}

	snapshot, err := m.store.Update(ctx, id, false, func(s *Session) error {
		if s.State == StateFinalizing {
			return ErrNotFound
		}
		s.State = StateFinalizing
		s.touch(m.opts.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := m.logger.With(slog.String("session_id", id))
	cleanupCtx := context.WithoutCancel(ctx)

	transcript := snapshot.AccumulatedText()
	if transcript == "" {
		if _, err := m.store.Update(cleanupCtx, id, false, func(s *Session) error {
			s.State = StateActive
			return nil
		}); err != nil {
			logger.Warn("Failed to reactivate session", slog.String("error", err.Error()))
		}
		logger.Info("Finalize rejected: empty transcript", slog.Int("chunks", len(snapshot.Chunks)))
		return nil, ErrEmptyTranscript
	}

	// the session is removed whatever the caller does, so summarization
	// outlives the request and is bounded by its own retry budget
	summarizeCtx, cancel := context.WithTimeout(cleanupCtx, m.FinalizeBudget())
	analysis, degraded := m.summarize(summarizeCtx, logger, transcript)
	cancel()

	final := snapshot
	if removed, err := m.store.Delete(cleanupCtx, id); err != nil {
		logger.Warn("Failed to delete finalized session", slog.String("error", err.Error()))
	} else {
		final = removed
	}
	m.release(id, final.TempResources)

	now := m.opts.Now()
	result := &FinalResult{
		SessionID:        id,
		FullTranscript:   transcript,
		Analysis:         analysis,
		ChunksProcessed:  len(snapshot.Chunks),
		CompressionStats: snapshot.Stats,
		Degraded:         degraded,
		Duration:         now.Sub(snapshot.CreatedAt),
	}

	if m.archiver != nil {
		if err := m.archiver.Archive(cleanupCtx, final, result); err != nil {
			logger.Error("Failed to archive session", slog.String("error", err.Error()))
		}
	}

	m.metrics.RecordSessionFinalized(degraded, result.Duration.Seconds())
	m.bumpStats(func(st *ManagerStats) {
		st.Finalized++
		if degraded {
			st.Degraded++
		}
	})

	logger.Info("Session finalized",
		slog.Int("chunks_processed", result.ChunksProcessed),
		slog.Int("transcript_length", len(transcript)),
		slog.Int64("total_bytes", result.CompressionStats.TotalBytes),
		slog.Bool("degraded", degraded),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

func (m *Manager) summarize(ctx context.Context, logger *slog.Logger, transcript string) (string, bool) {
	policy := m.opts.SummarizeRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("Summarization attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	start := time.Now()
	analysis, err := retry.DoValue(ctx, policy, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, m.opts.SummarizeTimeout)
		defer cancel()
		return m.summarizer.Summarize(ctx, transcript)
	})
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordSummarization(true, duration.Seconds())
		logger.Error("Summarization unavailable, returning degraded analysis",
			slog.String("error", err.Error()))
		return summary.Fallback(transcript, err), true
	}

	m.metrics.RecordSummarization(false, duration.Seconds())
	return analysis, false
}

// FinalizeBudget returns the longest summarization may run during Finalize.
// Callers waiting on Finalize need a deadline beyond it.
func (m *Manager) FinalizeBudget() time.Duration {
	return m.opts.SummarizeRetry.Budget(m.opts.SummarizeTimeout)
}

// Sweep evicts every session idle for longer than the idle timeout and
// releases its resources. Finalizing sessions are skipped.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.opts.Now()
	swept, err := m.store.Sweep(ctx, now.Add(-m.opts.IdleTimeout))

	for _, s := range swept {
		m.logger.Info("Session expired",
			slog.String("session_id", s.ID),
			slog.Duration("idle", now.Sub(s.LastActivityAt)),
			slog.Int("chunks", len(s.Chunks)),
		)
		m.release(s.ID, s.TempResources)
		m.metrics.RecordSessionExpired(now.Sub(s.CreatedAt).Seconds())
	}

	if len(swept) > 0 {
		m.bumpStats(func(st *ManagerStats) { st.Expired += uint64(len(swept)) })
	}

	if err == nil {
		m.removeOrphans(ctx, now.Add(-m.opts.IdleTimeout))
	}

	if err != nil {
		return len(swept), fmt.Errorf("sweep failed: %w", err)
	}
	return len(swept), nil
}

// removeOrphans deletes staged chunks older than cutoff that no stored
// session tracks. They are left behind when a store entry expires on its own.
func (m *Manager) removeOrphans(ctx context.Context, cutoff time.Time) int {
	sessions, err := m.store.List(ctx)
	if err != nil {
		m.logger.Warn("Skipping orphan cleanup", slog.String("error", err.Error()))
		return 0
	}
	tracked := make(map[string]bool)
	for _, s := range sessions {
		for _, h := range s.TempResources {
			tracked[filepath.Clean(h)] = true
		}
	}

	entries, err := os.ReadDir(m.opts.UploadDir)
	if err != nil {
		m.logger.Warn("Failed to read upload dir", slog.String("error", err.Error()))
		return 0
	}

	var orphans []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), stagedPrefix) {
			continue
		}
		path := filepath.Join(m.opts.UploadDir, e.Name())
		if tracked[path] {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		orphans = append(orphans, path)
	}
	if len(orphans) == 0 {
		return 0
	}

	m.logger.Info("Removing orphaned chunk files", slog.Int("count", len(orphans)))
	m.release("", orphans)
	m.bumpStats(func(st *ManagerStats) { st.OrphansRemoved += uint64(len(orphans)) })
	return len(orphans)
}

// release removes every handle; failures are logged and never stop the loop
func (m *Manager) release(id string, handles []string) {
	for _, h := range handles {
		if err := m.opts.Release(h); err != nil {
			m.metrics.RecordReleaseFailure()
			m.bumpStats(func(st *ManagerStats) { st.ReleaseFailures++ })
			m.logger.Warn("Failed to release temporary resource",
				slog.String("session_id", id),
				slog.String("resource", h),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ReleaseAll drops every remaining session and its resources. Used on
// shutdown when sessions do not outlive the process.
func (m *Manager) ReleaseAll(ctx context.Context) int {
	sessions, err := m.store.List(ctx)
	if err != nil {
		m.logger.Warn("Failed to list sessions for release", slog.String("error", err.Error()))
		return 0
	}

	released := 0
	for _, s := range sessions {
		removed, err := m.store.Delete(ctx, s.ID)
		if err != nil {
			continue
		}
		m.release(removed.ID, removed.TempResources)
		released++
	}
	return released
}

// startCleanupRoutine runs the reaper until Stop is called
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	m.logger.Info("Session reaper started",
		slog.Duration("idle_timeout", m.opts.IdleTimeout),
		slog.Duration("check_interval", m.opts.SweepInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session reaper stopping")
			return

		case <-ticker.C:
			if _, err := m.Sweep(m.ctx); err != nil {
				m.logger.Error("Session sweep failed", slog.String("error", err.Error()))
			}
			m.metrics.SetActiveSessions(m.ActiveCount(m.ctx))
		}
	}
}

func (m *Manager) bumpStats(fn func(*ManagerStats)) {
	m.statsMu.Lock()
	fn(&m.stats)
	m.statsMu.Unlock()
}

// GetStats returns current manager statistics
func (m *Manager) GetStats(ctx context.Context) ManagerStats {
	m.statsMu.Lock()
	stats := m.stats
	m.statsMu.Unlock()

	stats.ActiveSessions = m.ActiveCount(ctx)
	return stats
}

// TranscriptionStats returns provider statistics when the transcriber keeps them
func (m *Manager) TranscriptionStats() (transcription.ClientStats, bool) {
	sp, ok := m.transcriber.(transcription.StatsProvider)
	if !ok {
		return transcription.ClientStats{}, false
	}
	return sp.GetStats(), true
}

// IdleTimeout returns the configured idle timeout
func (m *Manager) IdleTimeout() time.Duration {
	return m.opts.IdleTimeout
}

// Stop stops the reaper and waits for it to exit
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.cancel()
	<-m.cleanup

	stats := m.GetStats(context.Background())
	m.logger.Info("Session manager stopped",
		slog.Int("remaining_sessions", stats.ActiveSessions),
		slog.Uint64("chunks_processed", stats.ChunksProcessed),
		slog.Uint64("finalized", stats.Finalized),
		slog.Uint64("expired", stats.Expired),
	)
}
