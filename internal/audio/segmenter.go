package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default segmenter values
const (
	DefaultInterval   = 5 * time.Second
	DefaultSampleRate = 16000
)

// SilenceDetector decides whether a drained interval carries no speech
type SilenceDetector interface {
	IsSilent(samples []int16) bool
}

// Segment is one self-contained, independently decodable WAV chunk
type Segment struct {
	Index     int           `json:"chunk_index"`
	Data      []byte        `json:"-"`
	Samples   int           `json:"samples"`
	Duration  time.Duration `json:"duration"`
	Sources   int           `json:"sources"`
	CreatedAt time.Time     `json:"created_at"`
}

// SegmenterConfig contains configuration for the segmentation process
type SegmenterConfig struct {
	Interval   time.Duration
	SampleRate int
	Mixer      Mixer
	Silence    SilenceDetector // nil disables the silence check
}

// Segmenter cuts the capture sources into fixed-interval segments.
// Every segment is encoded by a fresh encoder over the samples drained for
// that interval, never sliced out of a continuous stream.
type Segmenter struct {
	config  SegmenterConfig
	sources []*Buffer
	logger  *slog.Logger

	nextIndex int

	// Statistics
	segmentsCreated uint64
	emptyDiscarded  uint64
	silentDiscarded uint64
	totalDuration   time.Duration

	mu sync.Mutex
}

// SegmenterStats represents segmenter statistics
type SegmenterStats struct {
	SegmentsCreated uint64        `json:"segments_created"`
	EmptyDiscarded  uint64        `json:"empty_discarded"`
	SilentDiscarded uint64        `json:"silent_discarded"`
	NextIndex       int           `json:"next_index"`
	TotalDuration   time.Duration `json:"total_duration"`
}

// NewSegmenter creates a segmenter over one or two sources
func NewSegmenter(config SegmenterConfig, logger *slog.Logger, sources ...*Buffer) (*Segmenter, error) {
	if len(sources) < 1 || len(sources) > 2 {
		return nil, fmt.Errorf("segmenter needs one or two sources, got %d", len(sources))
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Mixer == (Mixer{}) {
		config.Mixer = DefaultMixer()
	}

	return &Segmenter{
		config:  config,
		sources: sources,
		logger:  logger,
	}, nil
}

// Cut closes the current interval and returns its segment.
// It returns nil when the interval is empty or silent; such intervals do not
// consume a chunk index.
func (s *Segmenter) Cut() (*Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := make([][]int16, len(s.sources))
	total := 0
	for i, src := range s.sources {
		drained[i] = src.Drain()
		total += len(drained[i])
	}

	if total == 0 {
		s.emptyDiscarded++
		return nil, nil
	}

	var mixed []float64
	if len(drained) == 2 {
		mixed = s.config.Mixer.Mix(Int16ToFloat(drained[0]), Int16ToFloat(drained[1]))
	} else {
		mixed = s.config.Mixer.Single(Int16ToFloat(drained[0]))
	}
	pcm := FloatToInt16(mixed)

	if s.config.Silence != nil && s.config.Silence.IsSilent(pcm) {
		s.silentDiscarded++
		s.logger.Debug("Discarding silent segment",
			slog.Int("samples", len(pcm)))
		return nil, nil
	}

	data, err := EncodeWAV(pcm, s.config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment: %w", err)
	}

	duration := time.Duration(len(pcm)) * time.Second / time.Duration(s.config.SampleRate)
	segment := &Segment{
		Index:     s.nextIndex,
		Data:      data,
		Samples:   len(pcm),
		Duration:  duration,
		Sources:   len(s.sources),
		CreatedAt: time.Now(),
	}

	s.nextIndex++
	s.segmentsCreated++
	s.totalDuration += duration

	return segment, nil
}

// Run cuts a segment every interval until ctx is done, then flushes the final
// partial interval. emit is called synchronously and must not block for long.
func (s *Segmenter) Run(ctx context.Context, emit func(*Segment)) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cutAndEmit(emit)
			return
		case <-ticker.C:
			s.cutAndEmit(emit)
		}
	}
}

func (s *Segmenter) cutAndEmit(emit func(*Segment)) {
	segment, err := s.Cut()
	if err != nil {
		s.logger.Error("Failed to cut segment", slog.String("error", err.Error()))
		return
	}
	if segment != nil {
		emit(segment)
	}
}

// GetStats returns current segmenter statistics
func (s *Segmenter) GetStats() SegmenterStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SegmenterStats{
		SegmentsCreated: s.segmentsCreated,
		EmptyDiscarded:  s.emptyDiscarded,
		SilentDiscarded: s.silentDiscarded,
		NextIndex:       s.nextIndex,
		TotalDuration:   s.totalDuration,
	}
}
