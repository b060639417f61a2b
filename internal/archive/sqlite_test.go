package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/PedroOSilv/meetResume/internal/session"
)

func testSession(t *testing.T) (*session.Session, *session.FinalResult) {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s := &session.Session{
		ID:        "session_1",
		State:     session.StateFinalizing,
		CreatedAt: start,
	}
	s.PutChunk(session.Chunk{Index: 1, Text: "world", Bytes: 20, ReceivedAt: start.Add(10 * time.Second)})
	s.PutChunk(session.Chunk{Index: 0, Text: "hello", Bytes: 10, ReceivedAt: start.Add(5 * time.Second)})

	return s, &session.FinalResult{
		SessionID:        s.ID,
		FullTranscript:   s.AccumulatedText(),
		Analysis:         "greeting",
		ChunksProcessed:  2,
		CompressionStats: s.Stats,
		Duration:         time.Minute,
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	s, result := testSession(t)

	if err := a.Archive(ctx, s, result); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	r, err := a.Get(ctx, "session_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if r.Transcript != "hello world" || r.Analysis != "greeting" {
		t.Errorf("Unexpected record %+v", r)
	}
	if r.ChunkCount != 2 || r.TotalBytes != 30 {
		t.Errorf("Expected 2 chunks / 30 bytes, got %d / %d", r.ChunkCount, r.TotalBytes)
	}
	if len(r.Chunks) != 2 || r.Chunks[0].Index != 0 || r.Chunks[1].Text != "world" {
		t.Errorf("Chunks not in index order: %+v", r.Chunks)
	}
	if !r.FinalizedAt.Equal(s.CreatedAt.Add(time.Minute)) {
		t.Errorf("Expected finalizedAt %v, got %v", s.CreatedAt.Add(time.Minute), r.FinalizedAt)
	}
	if !r.Chunks[0].ReceivedAt.Equal(s.CreatedAt.Add(5 * time.Second)) {
		t.Errorf("Unexpected chunk time %v", r.Chunks[0].ReceivedAt)
	}
}

func TestArchiveReplacesEarlierCopy(t *testing.T) {
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	s, result := testSession(t)
	if err := a.Archive(ctx, s, result); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	delete(s.Chunks, 1)
	result.Analysis = "[DEGRADED] fallback"
	result.Degraded = true
	if err := a.Archive(ctx, s, result); err != nil {
		t.Fatalf("second Archive failed: %v", err)
	}

	r, err := a.Get(ctx, "session_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !r.Degraded || len(r.Chunks) != 1 {
		t.Errorf("Expected replaced degraded record with 1 chunk, got %+v", r)
	}
}

func TestGetMissing(t *testing.T) {
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if _, err := a.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecentOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", "sessions.db")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		s, result := testSession(t)
		s.ID = id
		result.SessionID = id
		result.Duration = time.Duration(i+1) * time.Minute
		if err := a.Archive(ctx, s, result); err != nil {
			t.Fatalf("Archive %s failed: %v", id, err)
		}
	}
	a.Close()

	// reopen to confirm persistence
	a, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer a.Close()

	records, err := a.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].SessionID != "c" || records[1].SessionID != "b" {
		t.Errorf("Expected newest first, got %s, %s", records[0].SessionID, records[1].SessionID)
	}
}
