package audio

import (
	"sync"
	"time"
)

// Buffer accumulates little-endian PCM-16 bytes written by a capture pump.
// Drain hands everything captured since the previous drain to the segmenter.
type Buffer struct {
	name       string
	sampleRate int

	samples  []int16
	carry    []byte // odd trailing byte from the previous write
	hasCarry bool

	// Statistics
	totalSamples uint64
	drains       uint64
	lastUpdate   time.Time

	mu sync.Mutex
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	Name         string    `json:"name"`
	TotalSamples uint64    `json:"total_samples"`
	Pending      int       `json:"pending_samples"`
	Drains       uint64    `json:"drains"`
	LastUpdate   time.Time `json:"last_update"`
}

// NewBuffer creates a buffer for one capture source
func NewBuffer(name string, sampleRate int) *Buffer {
	return &Buffer{
		name:       name,
		sampleRate: sampleRate,
		samples:    make([]int16, 0, sampleRate*2), // 2 seconds
		carry:      make([]byte, 1),
	}
}

// Write implements io.Writer for raw s16le bytes
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	if b.hasCarry && len(p) > 0 {
		b.samples = append(b.samples, int16(uint16(b.carry[0])|uint16(p[0])<<8))
		b.totalSamples++
		b.hasCarry = false
		data = p[1:]
	}

	n := len(data) / 2
	for i := 0; i < n; i++ {
		b.samples = append(b.samples, int16(uint16(data[2*i])|uint16(data[2*i+1])<<8))
	}
	b.totalSamples += uint64(n)

	if len(data)%2 == 1 {
		b.carry[0] = data[len(data)-1]
		b.hasCarry = true
	}

	b.lastUpdate = time.Now()
	return len(p), nil
}

// WriteSamples appends already-decoded samples
func (b *Buffer) WriteSamples(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, samples...)
	b.totalSamples += uint64(len(samples))
	b.lastUpdate = time.Now()
}

// Drain returns and clears all samples captured since the last drain
func (b *Buffer) Drain() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.samples
	b.samples = make([]int16, 0, cap(out))
	b.drains++
	return out
}

// Size returns the number of pending samples
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Name returns the source name for this buffer
func (b *Buffer) Name() string {
	return b.name
}

// GetStats returns current buffer statistics
func (b *Buffer) GetStats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		Name:         b.name,
		TotalSamples: b.totalSamples,
		Pending:      len(b.samples),
		Drains:       b.drains,
		LastUpdate:   b.lastUpdate,
	}
}
