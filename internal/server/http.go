package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/PedroOSilv/meetResume/internal/archive"
	"github.com/PedroOSilv/meetResume/internal/config"
	"github.com/PedroOSilv/meetResume/internal/metrics"
	"github.com/PedroOSilv/meetResume/internal/session"
)

const (
	serviceName    = "meetresume"
	serviceVersion = "1.0.0"

	// maxJSONBody bounds the small JSON request bodies
	maxJSONBody = 1 << 20
)

// Assistant suggests objection handling for a live transcript
type Assistant interface {
	Suggest(ctx context.Context, transcript string) (string, error)
}

// ArchiveReader serves finished sessions
type ArchiveReader interface {
	Get(ctx context.Context, id string) (*archive.Record, error)
	Recent(ctx context.Context, limit int) ([]archive.Record, error)
}

// Option configures an HTTPServer
type Option func(*HTTPServer)

// WithAuthenticator protects the pipeline endpoints
func WithAuthenticator(auth Authenticator) Option {
	return func(h *HTTPServer) { h.auth = auth }
}

// WithAssistant enables the objection endpoint, limited to ratePerMinute
// requests with the given burst
func WithAssistant(a Assistant, ratePerMinute float64, burst int) Option {
	return func(h *HTTPServer) {
		h.assistant = a
		h.limiter = rate.NewLimiter(rate.Limit(ratePerMinute/60), burst)
	}
}

// WithArchive exposes archived sessions
func WithArchive(a ArchiveReader) Option {
	return func(h *HTTPServer) { h.archive = a }
}

// WithGatherer serves /metrics from g instead of the default registry
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *HTTPServer) { h.gatherer = g }
}

// HTTPServer provides the pipeline and monitoring endpoints
type HTTPServer struct {
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger
	config  *config.Config
	manager *session.Manager
	metrics *metrics.Metrics

	auth      Authenticator
	assistant Assistant
	limiter   *rate.Limiter
	archive   ArchiveReader
	gatherer  prometheus.Gatherer

	startTime time.Time
	endpoints map[string]string
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, manager *session.Manager,
	m *metrics.Metrics, opts ...Option) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		manager:   manager,
		metrics:   m,
		startTime: time.Now(),
		endpoints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.Server.Address, appConfig.Server.Port),
		Handler:      mux,
		ReadTimeout:  appConfig.Server.GetReadTimeoutDuration(),
		WriteTimeout: appConfig.Server.GetWriteTimeoutDuration(),
		IdleTimeout:  120 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	route := func(pattern, endpoint, description string, handler http.HandlerFunc) {
		h.endpoints[endpoint] = description
		mux.HandleFunc(pattern, h.withMetrics(endpoint, handler))
	}

	// Pipeline endpoints
	route("/upload-chunk", "POST /upload-chunk", "Upload and transcribe one chunk of a session",
		h.requireAuth(h.handleUploadChunk))
	route("/finalize", "POST /finalize", "Finalize a session and return transcript and analysis",
		h.requireAuth(h.handleFinalize))
	route("/upload", "POST /upload", "Transcribe a standalone recording",
		h.requireAuth(h.handleUpload))
	if h.assistant != nil {
		route("/api/assistant/objection", "POST /api/assistant/objection", "Suggest objection handling for a live transcript",
			h.requireAuth(h.handleObjection))
	}

	// Session endpoints
	route("/sessions", "GET|POST /sessions", "List sessions or start one explicitly", h.handleSessions)
	route("/sessions/{id}", "GET /sessions/{id}", "Get session details", h.requireAuth(h.handleSessionDetail))
	route("/sessions/{id}/heartbeat", "POST /sessions/{id}/heartbeat", "Keep a session alive without uploading audio",
		h.requireAuth(h.handleHeartbeat))

	if h.archive != nil {
		route("/archive", "GET /archive", "List recently finalized sessions", h.requireAuth(h.handleArchive))
		route("/archive/{id}", "GET /archive/{id}", "Get an archived session", h.requireAuth(h.handleArchiveDetail))
	}

	// Monitoring endpoints
	route("/health", "GET /health", "Service health check", h.handleHealth)
	route("/config", "GET /config", "Service configuration without secrets", h.handleConfig)
	route("/stats", "GET /stats", "Service statistics", h.handleStats)

	h.endpoints["GET /metrics"] = "Prometheus metrics"
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	// Root endpoint with API documentation, 404 for everything else
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the routed handler, used by tests and embedding servers
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
		slog.Bool("auth", h.auth != nil),
		slog.Bool("assistant", h.assistant != nil),
		slog.Bool("archive", h.archive != nil),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	return false
}

// readAudio reads the "audio" multipart file within the upload size limit
func (h *HTTPServer) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", maxBytes
		}
		if strings.Contains(err.Error(), "request body too large") {
			return nil, "", &http.MaxBytesError{Limit: h.config.Server.MaxUploadBytes}
		}
		return nil, "", fmt.Errorf("%w: invalid multipart form: %v", session.ErrValidation, err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, "", fmt.Errorf("%w: no audio file was sent", session.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: audio file is empty", session.ErrValidation)
	}

	return data, header.Filename, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return maxBytes
		}
		return fmt.Errorf("%w: invalid JSON body: %v", session.ErrValidation, err)
	}
	return nil
}

// handleUploadChunk implements POST /upload-chunk
func (h *HTTPServer) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	data, filename, err := h.readAudio(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	index, err := strconv.Atoi(strings.TrimSpace(r.FormValue("chunkIndex")))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: chunkIndex must be an integer", session.ErrValidation))
		return
	}

	result, err := h.manager.SubmitChunk(r.Context(), session.ChunkUpload{
		SessionID: strings.TrimSpace(r.FormValue("sessionId")),
		Index:     index,
		Audio:     data,
		Filename:  filename,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

// handleFinalize implements POST /finalize
func (h *HTTPServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.manager.Finalize(r.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleUpload implements POST /upload, a one-shot transcription
func (h *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	start := time.Now()

	data, filename, err := h.readAudio(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	text, err := h.manager.TranscribeOnce(r.Context(), data, filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript":         text,
		"processing_time_ms": time.Since(start).Milliseconds(),
		"timestamp":          time.Now().UTC(),
	})
}

type objectionRequest struct {
	Transcript string `json:"transcript"`
}

// handleObjection implements POST /api/assistant/objection
func (h *HTTPServer) handleObjection(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	var req objectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		h.writeError(w, r, fmt.Errorf("%w: transcript is required", session.ErrValidation))
		return
	}

	if !h.limiter.Allow() {
		w.Header().Set("Retry-After", "10")
		h.writeError(w, r, errRateLimited)
		return
	}

	suggestion, err := h.assistant.Suggest(r.Context(), req.Transcript)
	if err != nil {
		h.logger.Warn("Assistant request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Status:  "error",
			Error:   CodeAssistantFailed,
			Message: "assistant unavailable, try again",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"objection":    suggestion,
		"hasObjection": suggestion != "",
	})
}

// handleSessions implements GET /sessions and POST /sessions
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.requireAuth(h.listSessions)(w, r)
	case http.MethodPost:
		h.requireAuth(h.startSession)(w, r)
	default:
		allowMethod(w, r, http.MethodGet, http.MethodPost)
		h.writeError(w, r, errMethodNotAllowed)
	}
}

func (h *HTTPServer) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.manager.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := time.Now()
	infos := make([]session.Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info(now))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_sessions": len(infos),
		"timestamp":      now.UTC(),
		"sessions":       infos,
	})
}

func (h *HTTPServer) startSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.manager.Start(r.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess.Info(time.Now()))
}

// handleSessionDetail implements GET /sessions/{id}
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	sess, err := h.manager.Peek(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Info(time.Now()))
}

// handleHeartbeat implements POST /sessions/{id}/heartbeat. It counts as
// session activity for the reaper.
func (h *HTTPServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	sess, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Info(time.Now()))
}

// handleArchive implements GET /archive
func (h *HTTPServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", session.ErrValidation))
			return
		}
		limit = n
	}

	records, err := h.archive.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(records),
		"sessions": records,
	})
}

// handleArchiveDetail implements GET /archive/{id}
func (h *HTTPServer) handleArchiveDetail(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	record, err := h.archive.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	components := map[string]interface{}{
		"session_manager": map[string]interface{}{
			"status":          "running",
			"active_sessions": h.manager.ActiveCount(r.Context()),
		},
	}
	if ts, ok := h.manager.TranscriptionStats(); ok {
		components["transcription"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  ts.TotalRequests,
			"success_rate":    ts.SuccessRate,
			"active_requests": ts.ActiveRequests,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.Seconds(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": components,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.config.Sanitized())
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":       time.Since(h.startTime).String(),
		"timestamp":    time.Now().UTC(),
		"sessions":     h.manager.GetStats(r.Context()),
		"idle_timeout": h.manager.IdleTimeout().String(),
	}
	if ts, ok := h.manager.TranscriptionStats(); ok {
		stats["transcription"] = ts
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation and the JSON 404
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"status":              "error",
			"error":               CodeNotFound,
			"message":             "endpoint not found",
			"available_endpoints": h.endpoints,
		})
		return
	}

	if !allowMethod(w, r, http.MethodGet) {
		h.writeError(w, r, errMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   serviceName,
		"version":   serviceVersion,
		"endpoints": h.endpoints,
		"timestamp": time.Now().UTC(),
	})
}
