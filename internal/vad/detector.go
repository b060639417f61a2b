package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Detector classifies PCM-16 windows as voice or silence using RMS energy
type Detector struct {
	threshold  float32 // Normalized RMS at or above which a window has voice
	windowSize int     // Samples per window
	sampleRate int

	// Statistics
	totalWindows  uint64
	voiceWindows  uint64
	silentChecks  uint64
	lastProcessed time.Time

	mu sync.RWMutex
}

// Result represents the outcome of processing one window
type Result struct {
	Energy    float32   `json:"energy"`    // Normalized RMS energy (0.0 - 1.0)
	HasVoice  bool      `json:"has_voice"` // Whether voice was detected
	Timestamp time.Time `json:"timestamp"`
}

// DetectorStats represents detector statistics
type DetectorStats struct {
	TotalWindows    uint64    `json:"total_windows"`
	VoiceWindows    uint64    `json:"voice_windows"`
	VoicePercentage float64   `json:"voice_percentage"`
	SilentSegments  uint64    `json:"silent_segments"`
	LastProcessed   time.Time `json:"last_processed"`
	Threshold       float32   `json:"threshold"`
}

// fullScale is the RMS value mapped to energy 1.0
const fullScale = 10000.0

// NewDetector creates a new detector
func NewDetector(threshold float32, windowSize int, sampleRate int) (*Detector, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	return &Detector{
		threshold:  threshold,
		windowSize: windowSize,
		sampleRate: sampleRate,
	}, nil
}

// Process classifies a single window of samples
func (d *Detector) Process(samples []int16) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty window")
	}

	energy := Energy(samples)

	d.mu.Lock()
	defer d.mu.Unlock()

	hasVoice := energy >= d.threshold
	d.totalWindows++
	if hasVoice {
		d.voiceWindows++
	}
	d.lastProcessed = time.Now()

	return &Result{
		Energy:    energy,
		HasVoice:  hasVoice,
		Timestamp: d.lastProcessed,
	}, nil
}

// IsSilent reports whether no window of samples reaches the voice threshold.
// A trailing partial window is evaluated as well.
func (d *Detector) IsSilent(samples []int16) bool {
	silent := true
	for start := 0; start < len(samples); start += d.windowSize {
		end := start + d.windowSize
		if end > len(samples) {
			end = len(samples)
		}
		res, err := d.Process(samples[start:end])
		if err == nil && res.HasVoice {
			silent = false
			break
		}
	}

	if silent {
		d.mu.Lock()
		d.silentChecks++
		d.mu.Unlock()
	}
	return silent
}

// Energy returns the normalized RMS energy of samples, clamped to [0, 1]
func Energy(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum/float64(len(samples))) / fullScale
	if rms > 1 {
		rms = 1
	}
	return float32(rms)
}

// GetStats returns current detector statistics
func (d *Detector) GetStats() DetectorStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	voicePercentage := float64(0)
	if d.totalWindows > 0 {
		voicePercentage = float64(d.voiceWindows) / float64(d.totalWindows) * 100
	}

	return DetectorStats{
		TotalWindows:    d.totalWindows,
		VoiceWindows:    d.voiceWindows,
		VoicePercentage: voicePercentage,
		SilentSegments:  d.silentChecks,
		LastProcessed:   d.lastProcessed,
		Threshold:       d.threshold,
	}
}

// UpdateThreshold updates the voice detection threshold
func (d *Detector) UpdateThreshold(threshold float32) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.threshold = threshold
	return nil
}

// GetWindowSize returns the window size in samples
func (d *Detector) GetWindowSize() int {
	return d.windowSize
}
