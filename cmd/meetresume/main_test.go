package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PedroOSilv/meetResume/internal/audio"
	"github.com/PedroOSilv/meetResume/internal/config"
)

func TestInitLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := initLogger(config.LoggingConfig{Level: tt.level, Format: "json", Output: "stderr"})
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("level %q: expected %v to be enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
			t.Errorf("level %q: expected levels below %v to be disabled", tt.level, tt.want)
		}
	}
}

func TestInitLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	logger := initLogger(config.LoggingConfig{Level: "info", Format: "text", Output: path})
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file at %s: %v", path, err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected message in log file, got %q", data)
	}
}

func TestBuildSegmenterConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cc := cfg.Client
	cc.Sources = []config.SourceConfig{
		{Name: "system", Format: "pulse", Gain: 0.5},
		{Name: "mic", Format: "pulse", Gain: 1.5},
	}
	cc.Silence.Enabled = false

	sc, err := buildSegmenterConfig(cc)
	if err != nil {
		t.Fatalf("buildSegmenterConfig failed: %v", err)
	}
	if sc.Mixer.GainA != 0.5 || sc.Mixer.GainB != 1.5 {
		t.Errorf("Expected gains 0.5/1.5, got %v/%v", sc.Mixer.GainA, sc.Mixer.GainB)
	}
	if sc.Interval != cc.GetChunkIntervalDuration() {
		t.Errorf("Expected interval %v, got %v", cc.GetChunkIntervalDuration(), sc.Interval)
	}
	if sc.Silence != nil {
		t.Error("Expected no silence detector when disabled")
	}

	cc.Sources = cc.Sources[:1]
	cc.Silence.Enabled = true
	sc, err = buildSegmenterConfig(cc)
	if err != nil {
		t.Fatalf("buildSegmenterConfig failed: %v", err)
	}
	if sc.Mixer.GainB != 1 {
		t.Errorf("Expected unity gain for the missing source, got %v", sc.Mixer.GainB)
	}
	if sc.Silence == nil {
		t.Error("Expected a silence detector when enabled")
	}
}

func TestOpenInputs(t *testing.T) {
	dir := t.TempDir()
	data, err := audio.EncodeWAV(make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, data, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cc := cfg.Client
	cc.Sources = []config.SourceConfig{{Name: "system", Format: "pulse"}}

	sources, err := openInputs([]string{first, second}, cc)
	if err != nil {
		t.Fatalf("openInputs failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name() != "system" || sources[1].Name() != "second" {
		t.Errorf("Unexpected names %q, %q", sources[0].Name(), sources[1].Name())
	}

	if _, err := openInputs([]string{first, second, first}, cc); err == nil {
		t.Error("Expected error for three inputs")
	}

	cc.SampleRate = 48000
	if _, err := openInputs([]string{first}, cc); err == nil {
		t.Error("Expected sample rate mismatch")
	}
}
