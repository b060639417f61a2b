package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PedroOSilv/meetResume/internal/audio"
	"github.com/PedroOSilv/meetResume/internal/capture"
	"github.com/PedroOSilv/meetResume/internal/session"
)

// fakeServer keeps uploaded chunks and finalizes them in index order
type fakeServer struct {
	mu          sync.Mutex
	started     []string
	chunks      map[int][]byte
	objections  []string
	finalizeErr error
	uploadGate  chan struct{}
	transcript  string
	heartbeats  int
}

func newFakeServer() *fakeServer {
	return &fakeServer{chunks: make(map[int][]byte), transcript: "we should talk about the price today"}
}

func (f *fakeServer) UploadChunk(ctx context.Context, sessionID string, index int, data []byte) (*session.ChunkResult, error) {
	if f.uploadGate != nil {
		select {
		case <-f.uploadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[index] = data
	return &session.ChunkResult{Transcript: f.transcript, ChunkIndex: index}, nil
}

func (f *fakeServer) StartSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, sessionID)
	return nil
}

func (f *fakeServer) Heartbeat(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeServer) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func (f *fakeServer) Finalize(ctx context.Context, sessionID string) (*session.FinalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return &session.FinalResult{SessionID: sessionID, ChunksProcessed: len(f.chunks), Analysis: "ok"}, nil
}

func (f *fakeServer) Objection(ctx context.Context, transcript string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objections = append(f.objections, transcript)
	return "offer a discount", nil
}

func (f *fakeServer) chunk(index int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[index]
}

// pcmSource returns seconds of a 440Hz tone as raw s16le
func pcmSource(name string, seconds float64) capture.Source {
	n := int(16000 * seconds)
	buf := new(bytes.Buffer)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	return capture.NewReaderSource(name, buf)
}

func recorderConfig() RecorderConfig {
	return RecorderConfig{
		SessionID:   "session_test",
		Segmenter:   audio.SegmenterConfig{Interval: time.Hour, SampleRate: 16000},
		Uploads:     OrchestratorConfig{Retry: fastRetry()},
		PendingWait: 2 * time.Second,
	}
}

func TestNewRecorderValidation(t *testing.T) {
	_, err := NewRecorder(recorderConfig(), nil, testLogger(), pcmSource("mic", 0.1))
	assert.Error(t, err)

	_, err = NewRecorder(recorderConfig(), newFakeServer(), testLogger())
	assert.Error(t, err)

	_, err = NewRecorder(recorderConfig(), newFakeServer(), testLogger(),
		pcmSource("a", 0.1), pcmSource("b", 0.1), pcmSource("c", 0.1))
	assert.Error(t, err)
}

func TestRecorderFlushesFinalSegmentOnStop(t *testing.T) {
	server := newFakeServer()
	rec, err := NewRecorder(recorderConfig(), server, testLogger(), pcmSource("mic", 1))
	require.NoError(t, err)

	require.NoError(t, rec.Start(context.Background()))
	assert.Equal(t, "session_test", rec.SessionID())

	outcome, err := rec.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"session_test"}, server.started)
	assert.Zero(t, outcome.Outstanding)
	assert.Empty(t, outcome.Failures)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, outcome.Result.ChunksProcessed)
	assert.Equal(t, uint64(1), outcome.Segments.SegmentsCreated)

	samples, rate, err := audio.DecodeWAV(server.chunk(0))
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Len(t, samples, 16000, "the final partial interval carries all captured audio")
}

func TestRecorderMixesTwoSources(t *testing.T) {
	server := newFakeServer()
	rec, err := NewRecorder(recorderConfig(), server, testLogger(),
		pcmSource("system", 0.5), pcmSource("mic", 1))
	require.NoError(t, err)

	require.NoError(t, rec.Start(context.Background()))
	_, err = rec.Stop(context.Background())
	require.NoError(t, err)

	samples, _, err := audio.DecodeWAV(server.chunk(0))
	require.NoError(t, err)
	assert.Len(t, samples, 16000, "the shorter source is padded")
}

func TestRecorderGeneratesSessionID(t *testing.T) {
	cfg := recorderConfig()
	cfg.SessionID = ""
	rec, err := NewRecorder(cfg, newFakeServer(), testLogger(), pcmSource("mic", 0.1))
	require.NoError(t, err)

	require.NoError(t, rec.Start(context.Background()))
	defer rec.Abort()

	id := rec.SessionID()
	assert.True(t, strings.HasPrefix(id, "session_"))
	assert.Len(t, strings.Split(id, "_"), 3)
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}

func TestRecorderFinalizesWithOutstandingUploads(t *testing.T) {
	server := newFakeServer()
	server.uploadGate = make(chan struct{})

	cfg := recorderConfig()
	cfg.PendingWait = 50 * time.Millisecond
	rec, err := NewRecorder(cfg, server, testLogger(), pcmSource("mic", 0.5))
	require.NoError(t, err)
	defer rec.orchestrator.Abort()

	require.NoError(t, rec.Start(context.Background()))
	outcome, err := rec.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Outstanding)
	require.NotNil(t, outcome.Result, "finalize proceeds after the bounded wait")
	assert.Zero(t, outcome.Result.ChunksProcessed)
}

func TestRecorderFinalizeError(t *testing.T) {
	server := newFakeServer()
	server.finalizeErr = errors.New("session not found")

	rec, err := NewRecorder(recorderConfig(), server, testLogger(), pcmSource("mic", 0.2))
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))

	outcome, err := rec.Stop(context.Background())
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Result)
	assert.Equal(t, server.transcript, outcome.Accumulated)
}

func TestRecorderDoneWhenSourcesEnd(t *testing.T) {
	server := newFakeServer()
	rec, err := NewRecorder(recorderConfig(), server, testLogger(),
		pcmSource("system", 0.2), pcmSource("mic", 0.3))
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))

	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done did not fire after every source reached EOF")
	}

	outcome, err := rec.Stop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	samples, _, err := audio.DecodeWAV(server.chunk(0))
	require.NoError(t, err)
	assert.Len(t, samples, int(16000*0.3), "audio read before Done is kept")
}

type stuckSource struct {
	closed chan struct{}
}

func (s *stuckSource) Read(p []byte) (int, error) {
	<-s.closed
	return 0, io.EOF
}

func (s *stuckSource) Close() error {
	close(s.closed)
	return nil
}

func (s *stuckSource) Name() string { return "stuck" }

func TestRecorderDoneWaitsForEverySource(t *testing.T) {
	stuck := &stuckSource{closed: make(chan struct{})}
	rec, err := NewRecorder(recorderConfig(), newFakeServer(), testLogger(), pcmSource("mic", 0.1), stuck)
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))

	select {
	case <-rec.Done():
		t.Fatal("Done fired while a source was still open")
	case <-time.After(100 * time.Millisecond):
	}

	_, err = rec.Stop(context.Background())
	require.NoError(t, err)
	select {
	case <-rec.Done():
	default:
		t.Error("Done must be closed after Stop")
	}
}

func TestRecorderSendsHeartbeats(t *testing.T) {
	server := newFakeServer()
	cfg := recorderConfig()
	cfg.HeartbeatInterval = 5 * time.Millisecond

	stuck := &stuckSource{closed: make(chan struct{})}
	rec, err := NewRecorder(cfg, server, testLogger(), stuck)
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))

	require.Eventually(t, func() bool { return server.heartbeatCount() >= 2 }, time.Second, time.Millisecond)

	_, err = rec.Stop(context.Background())
	require.NoError(t, err)
	sent := server.heartbeatCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, sent, server.heartbeatCount(), "no heartbeats after Stop")
}

func TestRecorderStopWithoutStart(t *testing.T) {
	rec, err := NewRecorder(recorderConfig(), newFakeServer(), testLogger(), pcmSource("mic", 0.1))
	require.NoError(t, err)

	_, err = rec.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderStopTwice(t *testing.T) {
	rec, err := NewRecorder(recorderConfig(), newFakeServer(), testLogger(), pcmSource("mic", 0.1))
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))

	_, err = rec.Stop(context.Background())
	require.NoError(t, err)
	_, err = rec.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderAssistantSuggestions(t *testing.T) {
	server := newFakeServer()

	var mu sync.Mutex
	var suggestions []string
	cfg := recorderConfig()
	cfg.Assistant = true
	cfg.OnSuggestion = func(s string) {
		mu.Lock()
		suggestions = append(suggestions, s)
		mu.Unlock()
	}

	rec, err := NewRecorder(cfg, server, testLogger(), pcmSource("mic", 0.2))
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))
	_, err = rec.Stop(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(suggestions) == 1
	}, time.Second, time.Millisecond)

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.objections, 1)
	assert.Equal(t, server.transcript, server.objections[0])
}
