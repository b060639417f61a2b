package audio

import (
	"errors"
	"math"
	"testing"
)

func sineSamples(sampleRate int, seconds float64, amplitude float64) []int16 {
	n := int(float64(sampleRate) * seconds)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = int16(amplitude * math.Sin(2*math.Pi*440*t))
	}
	return out
}

func TestEncodeWAV(t *testing.T) {
	sampleRate := 16000
	samples := sineSamples(sampleRate, 0.1, 16383)

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	expectedDuration := float64(len(samples)) / float64(sampleRate)
	if math.Abs(info.Duration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, info.Duration)
	}
}

func TestDecodeWAV(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500}

	wavData, err := EncodeWAV(originalSamples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	if len(decoded) != len(originalSamples) {
		t.Fatalf("Expected %d samples, got %d", len(originalSamples), len(decoded))
	}

	for i, original := range originalSamples {
		if decoded[i] != original {
			t.Errorf("Sample %d: expected %d, got %d", i, original, decoded[i])
		}
	}
}

func TestDecodeWAVTruncated(t *testing.T) {
	wavData, _ := EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	if _, _, err := DecodeWAV(wavData[:len(wavData)-3]); err == nil {
		t.Error("Expected error for truncated data")
	}
}

func TestGetWAVInfoRejectsCorruptData(t *testing.T) {
	wavData, _ := EncodeWAV(make([]int16, 1600), 16000)

	if _, err := GetWAVInfo(wavData[:len(wavData)-100]); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV for truncated data, got %v", err)
	}

	if _, err := GetWAVInfo([]byte("hello, this is not audio at all but it is long enough")); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV for text, got %v", err)
	}

	badRate := append([]byte(nil), wavData...)
	copy(badRate[24:28], []byte{0, 0, 0, 0})
	if _, err := GetWAVInfo(badRate); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV for zero sample rate, got %v", err)
	}
}

func TestGetWAVInfoStreamedHeader(t *testing.T) {
	wavData, _ := EncodeWAV(make([]int16, 8000), 16000)
	copy(wavData[40:44], []byte{0xFF, 0xFF, 0xFF, 0xFF})

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}
	if info.NumSamples != 8000 {
		t.Errorf("Expected 8000 samples measured from the data, got %d", info.NumSamples)
	}
	if math.Abs(info.Duration-0.5) > 0.001 {
		t.Errorf("Expected 0.5s, got %.3f", info.Duration)
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	if _, err := EncodeWAV([]int16{}, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}

	samples := []int16{100, 200, 300}
	if _, err := EncodeWAV(samples, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV(samples, -1000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestValidateWAV(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	if err := ValidateWAV(invalidWAV); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}
}
