package vad

import (
	"math"
	"testing"
)

func sine(n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func TestNewDetector(t *testing.T) {
	tests := []struct {
		name        string
		threshold   float32
		windowSize  int
		sampleRate  int
		expectError bool
	}{
		{"valid", 0.02, 512, 16000, false},
		{"threshold too high", 1.5, 512, 16000, true},
		{"negative threshold", -0.1, 512, 16000, true},
		{"zero window", 0.02, 0, 16000, true},
		{"zero sample rate", 0.02, 512, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDetector(tt.threshold, tt.windowSize, tt.sampleRate)
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestEnergy(t *testing.T) {
	if e := Energy(make([]int16, 100)); e != 0 {
		t.Errorf("Expected zero energy for silence, got %f", e)
	}

	if e := Energy(nil); e != 0 {
		t.Errorf("Expected zero energy for empty input, got %f", e)
	}

	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = math.MaxInt16
	}
	if e := Energy(loud); e != 1 {
		t.Errorf("Expected clamped energy 1, got %f", e)
	}
}

func TestIsSilent(t *testing.T) {
	d, err := NewDetector(0.02, 512, 16000)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	if !d.IsSilent(make([]int16, 16000)) {
		t.Error("Expected zeros to be silent")
	}

	speech := append(make([]int16, 8000), sine(1000, 8000)...)
	if d.IsSilent(speech) {
		t.Error("Expected segment with a tone to be voiced")
	}

	stats := d.GetStats()
	if stats.SilentSegments != 1 {
		t.Errorf("Expected 1 silent segment, got %d", stats.SilentSegments)
	}
	if stats.VoiceWindows == 0 {
		t.Error("Expected at least one voice window")
	}
}

func TestProcessEmptyWindow(t *testing.T) {
	d, _ := NewDetector(0.02, 512, 16000)
	if _, err := d.Process(nil); err == nil {
		t.Error("Expected error for empty window")
	}
}
