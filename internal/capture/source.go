package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PedroOSilv/meetResume/internal/audio"
)

// Source produces mono little-endian PCM-16 at the configured sample rate
type Source interface {
	io.ReadCloser
	Name() string
}

// FFmpegConfig describes one ffmpeg input device
type FFmpegConfig struct {
	Name       string
	Command    string // defaults to "ffmpeg"
	Format     string // pulse, alsa, avfoundation, dshow...
	Device     string
	SampleRate int
}

// FFmpegSource captures a device by piping ffmpeg's raw output.
// ffmpeg writes into an os.Pipe owned by the source, so reaping the process
// never closes the read end; readers drain it to EOF after ffmpeg exits.
type FFmpegSource struct {
	name    string
	stdout  *os.File
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	drained   chan struct{}
	drainOnce sync.Once

	stopOnce sync.Once
	stopErr  error
}

const (
	startupGrace = 250 * time.Millisecond
	stopGrace    = 1200 * time.Millisecond
)

// StartFFmpeg starts ffmpeg and returns once it has survived the startup grace period
func StartFFmpeg(ctx context.Context, cfg FFmpegConfig) (*FFmpegSource, error) {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.Format == "" {
		cfg.Format = "pulse"
	}
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Device
	}

	cmd := exec.CommandContext(ctx, cfg.Command, FFmpegArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", cfg.Name, err)
	}
	// only ffmpeg holds the write end now, so its exit ends the stream
	_ = pw.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = stdout.Close()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(startupGrace):
	}

	return &FFmpegSource{
		name:    cfg.Name,
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		drained: make(chan struct{}),
	}, nil
}

// FFmpegArgs builds the ffmpeg command line for cfg
func FFmpegArgs(cfg FFmpegConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.Format,
		"-i", cfg.Device,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

func (s *FFmpegSource) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil {
		s.drainOnce.Do(func() { close(s.drained) })
	}
	return n, err
}

// Name returns the configured source name
func (s *FFmpegSource) Name() string {
	return s.name
}

// Close interrupts ffmpeg and kills it if it does not exit within the grace
// period. Output still in the pipe stays readable until a reader reaches EOF
// or another grace period passes.
func (s *FFmpegSource) Close() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExit(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeExit(err)
			}
		}

		select {
		case <-s.drained:
		case <-time.After(stopGrace):
		}
		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeExit(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// OpenWAV loads a mono PCM-16 WAV recording as a source. The file must
// already be at sampleRate; name defaults to the file name.
func OpenWAV(name, path string, sampleRate int) (*ReaderSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if rate != sampleRate {
		return nil, fmt.Errorf("%s is %d Hz, expected %d Hz", path, rate, sampleRate)
	}

	pcm := bytes.NewBuffer(make([]byte, 0, len(samples)*2))
	if err := binary.Write(pcm, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", path, err)
	}

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return NewReaderSource(name, pcm), nil
}

// ReaderSource adapts any reader of raw PCM (files, pipes, tests)
type ReaderSource struct {
	name string
	r    io.Reader
}

// NewReaderSource wraps r as a named source
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

func (s *ReaderSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Name returns the source name
func (s *ReaderSource) Name() string {
	return s.name
}

// Close closes the underlying reader when it is a Closer
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Pump copies src into dst until EOF, a read error, or ctx is done.
// Reaching EOF is not an error.
func Pump(ctx context.Context, logger *slog.Logger, src Source, dst io.Writer) error {
	buf := make([]byte, 3200) // 100ms at 16kHz
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to buffer audio from %s: %w", src.Name(), werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || ctx.Err() != nil {
				logger.Debug("Audio source finished", slog.String("source", src.Name()))
				return nil
			}
			return fmt.Errorf("failed to read audio from %s: %w", src.Name(), err)
		}
	}
}
