package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PedroOSilv/meetResume/internal/archive"
	"github.com/PedroOSilv/meetResume/internal/config"
	"github.com/PedroOSilv/meetResume/internal/metrics"
	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/session"
	"github.com/PedroOSilv/meetResume/internal/transcription"
)

// scriptedTranscriber echoes the audio bytes unless they name a failure
type scriptedTranscriber struct{}

func (scriptedTranscriber) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	switch string(req.Audio) {
	case "fail-terminal":
		return "", retry.Terminal(errors.New("invalid file format"))
	case "fail-transient":
		return "", retry.Transient(errors.New("upstream 503"))
	case "quota":
		return "", retry.Terminal(fmt.Errorf("%w: insufficient_quota", transcription.ErrQuotaExceeded))
	}
	return string(req.Audio), nil
}

type echoSummarizer struct{}

func (echoSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	return "analysis: " + transcript, nil
}

type fakeAssistant struct {
	reply string
	calls int
}

func (f *fakeAssistant) Suggest(ctx context.Context, transcript string) (string, error) {
	f.calls++
	return f.reply, nil
}

type testServer struct {
	*httptest.Server
	http     *HTTPServer
	manager  *session.Manager
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Server.UploadDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	mgr, err := session.NewManager(logger, session.NewMemoryStore(), session.Options{
		UploadDir:       cfg.Server.UploadDir,
		TranscribeRetry: retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		SummarizeRetry:  retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}, scriptedTranscriber{}, echoSummarizer{}, nil, m)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	opts = append(opts, WithGatherer(registry))
	h := NewHTTPServer(cfg, logger, mgr, m, opts...)
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, http: h, manager: mgr, registry: registry}
}

func multipartBody(t *testing.T, fields map[string]string, audio []byte, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if audio != nil {
		part, err := w.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(audio)
	}
	w.Close()

	return body, w.FormDataContentType()
}

func (s *testServer) uploadChunk(t *testing.T, sessionID string, index string, audio []byte, headers ...string) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{"sessionId": sessionID, "chunkIndex": index}, audio, "chunk.webm")

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/upload-chunk", body)
	req.Header.Set("Content-Type", contentType)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	return resp
}

func (s *testServer) postJSON(t *testing.T, path string, payload any, headers ...string) *http.Response {
	t.Helper()
	data, _ := json.Marshal(payload)

	req, _ := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

func expectError(t *testing.T, resp *http.Response, status int, code string) errorResponse {
	t.Helper()
	var body errorResponse
	decodeBody(t, resp, &body)

	if resp.StatusCode != status {
		t.Errorf("Expected status %d, got %d (%+v)", status, resp.StatusCode, body)
	}
	if body.Error != code {
		t.Errorf("Expected error code %q, got %q", code, body.Error)
	}
	if body.Status != "error" {
		t.Errorf("Expected status field 'error', got %q", body.Status)
	}
	return body
}

func TestUploadAndFinalize(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, c := range []struct{ index, text string }{{"1", "world"}, {"0", "hello"}} {
		resp := srv.uploadChunk(t, "s1", c.index, []byte(c.text))
		var result session.ChunkResult
		decodeBody(t, resp, &result)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		if result.Transcript != c.text {
			t.Errorf("Expected transcript %q, got %q", c.text, result.Transcript)
		}
	}

	resp := srv.postJSON(t, "/finalize", map[string]string{"sessionId": "s1"})
	var final session.FinalResult
	decodeBody(t, resp, &final)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if final.FullTranscript != "hello world" {
		t.Errorf("Expected 'hello world', got %q", final.FullTranscript)
	}
	if final.Analysis != "analysis: hello world" || final.Degraded {
		t.Errorf("Unexpected analysis %q (degraded=%v)", final.Analysis, final.Degraded)
	}
	if final.ChunksProcessed != 2 || final.CompressionStats.TotalBytes != 10 {
		t.Errorf("Unexpected counters %+v", final)
	}

	resp = srv.postJSON(t, "/finalize", map[string]string{"sessionId": "s1"})
	expectError(t, resp, http.StatusNotFound, CodeSessionNotFound)
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := srv.uploadChunk(t, "s1", "0", nil)
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)

	resp = srv.uploadChunk(t, "s1", "abc", []byte("hello"))
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)

	resp = srv.uploadChunk(t, "", "0", []byte("hello"))
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)

	resp, err := http.Get(srv.URL + "/upload-chunk")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	expectError(t, resp, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
}

func TestUploadRejectsCorruptWAV(t *testing.T) {
	srv := newTestServer(t, nil)

	body, contentType := multipartBody(t, map[string]string{"sessionId": "s1", "chunkIndex": "0"},
		[]byte("RIFF but nothing like a real wave header"), "chunk_0.wav")
	resp, err := http.Post(srv.URL+"/upload-chunk", contentType, body)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)

	if n := srv.manager.ActiveCount(context.Background()); n != 0 {
		t.Errorf("Rejected uploads must not create sessions, got %d", n)
	}
}

func TestSessionHeartbeat(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := srv.uploadChunk(t, "s1", "0", []byte("hello"))
	resp.Body.Close()
	before, err := srv.manager.Peek(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	resp = srv.postJSON(t, "/sessions/s1/heartbeat", nil)
	var info session.Info
	decodeBody(t, resp, &info)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if info.ID != "s1" || len(info.ChunkIndexes) != 1 {
		t.Errorf("Unexpected session info %+v", info)
	}
	if !info.LastActivityAt.After(before.LastActivityAt) {
		t.Errorf("Heartbeat should record activity: %v is not after %v", info.LastActivityAt, before.LastActivityAt)
	}

	resp = srv.postJSON(t, "/sessions/nope/heartbeat", nil)
	expectError(t, resp, http.StatusNotFound, CodeSessionNotFound)

	resp, err = http.Get(srv.URL + "/sessions/s1/heartbeat")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	expectError(t, resp, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadBytes = 2048 })

	resp := srv.uploadChunk(t, "s1", "0", bytes.Repeat([]byte("a"), 8192))
	expectError(t, resp, http.StatusRequestEntityTooLarge, CodePayloadTooLarge)
}

func TestTranscriptionErrorMapping(t *testing.T) {
	tests := []struct {
		audio  string
		status int
		code   string
	}{
		{"fail-terminal", http.StatusUnprocessableEntity, CodeTranscriptionRejected},
		{"fail-transient", http.StatusBadGateway, CodeTranscriptionFailed},
		{"quota", http.StatusPaymentRequired, CodeQuotaExceeded},
	}

	srv := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.audio, func(t *testing.T) {
			resp := srv.uploadChunk(t, "s1", "0", []byte(tt.audio))
			expectError(t, resp, tt.status, tt.code)
		})
	}
}

func TestFinalizeErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := srv.postJSON(t, "/finalize", map[string]string{"sessionId": "missing"})
	expectError(t, resp, http.StatusNotFound, CodeSessionNotFound)

	resp = srv.postJSON(t, "/finalize", map[string]string{})
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)

	resp = srv.postJSON(t, "/sessions", map[string]string{"sessionId": "empty"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for session start, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = srv.postJSON(t, "/finalize", map[string]string{"sessionId": "empty"})
	expectError(t, resp, http.StatusBadRequest, CodeEmptyTranscript)

	if _, err := srv.manager.Peek(context.Background(), "empty"); err != nil {
		t.Errorf("Session should survive an empty finalize: %v", err)
	}
}

func TestDevelopmentDetails(t *testing.T) {
	prod := newTestServer(t, nil)
	body := expectError(t, prod.postJSON(t, "/finalize", map[string]string{"sessionId": "x"}),
		http.StatusNotFound, CodeSessionNotFound)
	if body.Details != "" {
		t.Errorf("Production must not expose details, got %q", body.Details)
	}

	dev := newTestServer(t, func(c *config.Config) { c.Server.Environment = "development" })
	body = expectError(t, dev.postJSON(t, "/finalize", map[string]string{"sessionId": "x"}),
		http.StatusNotFound, CodeSessionNotFound)
	if body.Details == "" {
		t.Error("Development should expose details")
	}
}

func TestOneShotUpload(t *testing.T) {
	srv := newTestServer(t, nil)

	body, contentType := multipartBody(t, nil, []byte("bom dia"), "memo.mp3")
	resp, err := http.Post(srv.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /upload failed: %v", err)
	}

	var result map[string]interface{}
	decodeBody(t, resp, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if result["transcript"] != "bom dia" {
		t.Errorf("Expected 'bom dia', got %v", result["transcript"])
	}
	if _, ok := result["processing_time_ms"]; !ok {
		t.Error("Expected processing_time_ms")
	}

	body, contentType = multipartBody(t, nil, []byte("   "), "silence.webm")
	resp, _ = http.Post(srv.URL+"/upload", contentType, body)
	expectError(t, resp, http.StatusBadRequest, CodeNoSpeech)
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t, nil, WithAuthenticator(NewStaticTokenAuthenticator([]string{"secret"})))

	resp := srv.uploadChunk(t, "s1", "0", []byte("hello"))
	expectError(t, resp, http.StatusUnauthorized, CodeUnauthorized)
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("Expected WWW-Authenticate header")
	}

	resp = srv.uploadChunk(t, "s1", "0", []byte("hello"), "Authorization", "Bearer wrong")
	expectError(t, resp, http.StatusUnauthorized, CodeUnauthorized)

	resp = srv.uploadChunk(t, "s1", "0", []byte("hello"), "Authorization", "Bearer secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d", resp.StatusCode)
	}

	// monitoring stays open
	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("Expected open /health, got %d", health.StatusCode)
	}
}

func TestStaticTokenAuthenticator(t *testing.T) {
	auth := NewStaticTokenAuthenticator([]string{"a", " ", "b"})

	tests := []struct {
		header string
		ok     bool
	}{
		{"Bearer a", true},
		{"bearer b", true},
		{"Bearer c", false},
		{"Basic a", false},
		{"Bearer", false},
		{"", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		err := auth.Authenticate(r)
		if tt.ok && err != nil {
			t.Errorf("%q: expected accepted, got %v", tt.header, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%q: expected ErrUnauthorized, got %v", tt.header, err)
		}
	}
}

func TestObjectionRateLimited(t *testing.T) {
	assistant := &fakeAssistant{reply: "Offer a trial period."}
	srv := newTestServer(t, nil, WithAssistant(assistant, 1, 1))

	resp := srv.postJSON(t, "/api/assistant/objection", map[string]string{"transcript": "it is too expensive for us"})
	var result map[string]interface{}
	decodeBody(t, resp, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if result["objection"] != "Offer a trial period." || result["hasObjection"] != true {
		t.Errorf("Unexpected reply %v", result)
	}

	resp = srv.postJSON(t, "/api/assistant/objection", map[string]string{"transcript": "still too expensive"})
	expectError(t, resp, http.StatusTooManyRequests, CodeRateLimited)

	if assistant.calls != 1 {
		t.Errorf("Expected one assistant call, got %d", assistant.calls)
	}

	resp = srv.postJSON(t, "/api/assistant/objection", map[string]string{"transcript": " "})
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)
}

func TestObjectionDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := srv.postJSON(t, "/api/assistant/objection", map[string]string{"transcript": "x"})
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without an assistant, got %d", resp.StatusCode)
	}
}

func TestNotFoundListsEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}

	var body struct {
		Error     string            `json:"error"`
		Endpoints map[string]string `json:"available_endpoints"`
	}
	decodeBody(t, resp, &body)

	if resp.StatusCode != http.StatusNotFound || body.Error != CodeNotFound {
		t.Errorf("Expected 404 not_found, got %d %q", resp.StatusCode, body.Error)
	}
	for _, ep := range []string{"POST /upload-chunk", "POST /finalize", "GET /health"} {
		if _, ok := body.Endpoints[ep]; !ok {
			t.Errorf("Expected %s in endpoint listing", ep)
		}
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.Transcription.APIKey = "sk-very-secret"
	})
	srv.uploadChunk(t, "s1", "0", []byte("hello")).Body.Close()

	resp, _ := http.Get(srv.URL + "/health")
	var health map[string]interface{}
	decodeBody(t, resp, &health)
	if health["status"] != "ok" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}
	if _, ok := health["uptime"].(float64); !ok {
		t.Errorf("Expected numeric uptime, got %v", health["uptime"])
	}

	resp, _ = http.Get(srv.URL + "/sessions")
	var list struct {
		Total    int            `json:"total_sessions"`
		Sessions []session.Info `json:"sessions"`
	}
	decodeBody(t, resp, &list)
	if list.Total != 1 || list.Sessions[0].ID != "s1" {
		t.Errorf("Unexpected session list %+v", list)
	}

	resp, _ = http.Get(srv.URL + "/sessions/s1")
	var info session.Info
	decodeBody(t, resp, &info)
	if info.TranscriptLength != 5 || len(info.ChunkIndexes) != 1 {
		t.Errorf("Unexpected session info %+v", info)
	}

	resp, _ = http.Get(srv.URL + "/sessions/missing")
	expectError(t, resp, http.StatusNotFound, CodeSessionNotFound)

	resp, _ = http.Get(srv.URL + "/config")
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.Contains(string(raw), "sk-very-secret") {
		t.Error("Config endpoint leaked the API key")
	}

	resp, _ = http.Get(srv.URL + "/stats")
	var stats struct {
		Sessions session.ManagerStats `json:"sessions"`
	}
	decodeBody(t, resp, &stats)
	if stats.Sessions.ChunksProcessed != 1 {
		t.Errorf("Expected 1 processed chunk, got %d", stats.Sessions.ChunksProcessed)
	}

	resp, _ = http.Get(srv.URL + "/metrics")
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(raw), "meetresume_http_requests_total") {
		t.Error("Expected HTTP metrics to be exported")
	}
}

type fakeArchive struct{}

func (fakeArchive) Get(ctx context.Context, id string) (*archive.Record, error) {
	if id != "s1" {
		return nil, archive.ErrNotFound
	}
	return &archive.Record{SessionID: "s1", Transcript: "hello"}, nil
}

func (fakeArchive) Recent(ctx context.Context, limit int) ([]archive.Record, error) {
	return []archive.Record{{SessionID: "s1"}}, nil
}

func TestArchiveEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, WithArchive(fakeArchive{}))

	resp, _ := http.Get(srv.URL + "/archive/s1")
	var record archive.Record
	decodeBody(t, resp, &record)
	if record.Transcript != "hello" {
		t.Errorf("Unexpected record %+v", record)
	}

	resp, _ = http.Get(srv.URL + "/archive/other")
	expectError(t, resp, http.StatusNotFound, CodeNotFound)

	resp, _ = http.Get(srv.URL + "/archive?limit=0")
	expectError(t, resp, http.StatusBadRequest, CodeInvalidRequest)
}
