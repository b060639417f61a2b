package session

import (
	"sort"
	"strings"
	"time"
)

// State is the lifecycle state of a stored session
type State string

const (
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
)

// Chunk is the transcription result for one chunk index
type Chunk struct {
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Bytes      int64     `json:"bytes"`
	ReceivedAt time.Time `json:"received_at"`
}

// CompressionStats aggregates the uploaded audio of a session
type CompressionStats struct {
	TotalBytes int64 `json:"totalBytes"`
	ChunkCount int   `json:"chunkCount"`
}

// Session is the server-side accumulation of one recording
type Session struct {
	ID             string           `json:"id"`
	State          State            `json:"state"`
	Chunks         map[int]Chunk    `json:"chunks"`
	CreatedAt      time.Time        `json:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
	TempResources  []string         `json:"temp_resources,omitempty"`
	Stats          CompressionStats `json:"stats"`
}

// Info is the monitoring view of a session
type Info struct {
	ID               string           `json:"id"`
	State            State            `json:"state"`
	CreatedAt        time.Time        `json:"created_at"`
	LastActivityAt   time.Time        `json:"last_activity_at"`
	Duration         time.Duration    `json:"duration"`
	ChunkIndexes     []int            `json:"chunk_indexes"`
	TranscriptLength int              `json:"transcript_length"`
	PendingResources int              `json:"pending_resources"`
	CompressionStats CompressionStats `json:"compression_stats"`
}

func newSession(id string) *Session {
	return &Session{
		ID:     id,
		State:  StateActive,
		Chunks: make(map[int]Chunk),
	}
}

// touch records activity, initializing CreatedAt on first use
func (s *Session) touch(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivityAt = now
}

// PutChunk stores c at its index, replacing any earlier result for that index
func (s *Session) PutChunk(c Chunk) {
	if s.Chunks == nil {
		s.Chunks = make(map[int]Chunk)
	}
	if prev, ok := s.Chunks[c.Index]; ok {
		s.Stats.TotalBytes -= prev.Bytes
	}
	s.Chunks[c.Index] = c
	s.Stats.TotalBytes += c.Bytes
	s.Stats.ChunkCount = len(s.Chunks)
}

// AddTempResource registers a handle to release when the session ends
func (s *Session) AddTempResource(handle string) {
	s.TempResources = append(s.TempResources, handle)
}

// Indexes returns the stored chunk indexes in ascending order
func (s *Session) Indexes() []int {
	idx := make([]int, 0, len(s.Chunks))
	for i := range s.Chunks {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// AccumulatedText joins the non-empty chunk texts in index order with one space
func (s *Session) AccumulatedText() string {
	parts := make([]string, 0, len(s.Chunks))
	for _, i := range s.Indexes() {
		if text := strings.TrimSpace(s.Chunks[i].Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	c := *s
	c.Chunks = make(map[int]Chunk, len(s.Chunks))
	for k, v := range s.Chunks {
		c.Chunks[k] = v
	}
	c.TempResources = append([]string(nil), s.TempResources...)
	return &c
}

// Info returns the monitoring view of the session
func (s *Session) Info(now time.Time) Info {
	return Info{
		ID:               s.ID,
		State:            s.State,
		CreatedAt:        s.CreatedAt,
		LastActivityAt:   s.LastActivityAt,
		Duration:         now.Sub(s.CreatedAt),
		ChunkIndexes:     s.Indexes(),
		TranscriptLength: len(s.AccumulatedText()),
		PendingResources: len(s.TempResources),
		CompressionStats: s.Stats,
	}
}
