package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PedroOSilv/meetResume/internal/audio"
	"github.com/PedroOSilv/meetResume/internal/capture"
	"github.com/PedroOSilv/meetResume/internal/client"
	"github.com/PedroOSilv/meetResume/internal/config"
	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/vad"
)

var (
	recordDuration  time.Duration
	recordSessionID string
	recordOutput    string
	recordInputs    []string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture a meeting and stream it to the server",
	Long: `record captures the configured audio sources, uploads a chunk every
chunk_interval and finalizes the session when interrupted or when --duration
elapses. The final analysis is printed as JSON.

With --input, WAV recordings replace the capture devices and the session is
finalized once every file has been read.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "Stop after this long (default: until interrupted)")
	recordCmd.Flags().StringVar(&recordSessionID, "session", "", "Session id to use instead of a generated one")
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "Write the result to this file instead of stdout")
	recordCmd.Flags().StringSliceVarP(&recordInputs, "input", "i", nil, "Read mono PCM-16 WAV files instead of capturing (at most two)")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateClient(); err != nil {
		return err
	}
	cc := cfg.Client

	api, err := client.NewAPIClient(client.APIConfig{
		BaseURL:         cc.ServerURL,
		Token:           cc.Token,
		Timeout:         cc.Upload.GetTimeoutDuration(),
		FinalizeTimeout: cc.GetFinalizeTimeoutDuration(),
	})
	if err != nil {
		return err
	}

	healthCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	if err := api.Health(healthCtx); err != nil {
		logger.Warn("Server health check failed, recording anyway",
			slog.String("server_url", cc.ServerURL),
			slog.String("error", err.Error()))
	}
	cancel()

	var sources []capture.Source
	if len(recordInputs) > 0 {
		sources, err = openInputs(recordInputs, cc)
	} else {
		sources, err = startSources(cc, logger)
	}
	if err != nil {
		return err
	}

	segmenterConfig, err := buildSegmenterConfig(cc)
	if err != nil {
		closeSources(sources, logger)
		return err
	}

	recorder, err := client.NewRecorder(client.RecorderConfig{
		SessionID: recordSessionID,
		Segmenter: segmenterConfig,
		Uploads: client.OrchestratorConfig{
			MaxConcurrent: cc.Upload.MaxConcurrent,
			Retry: retry.Policy{
				MaxAttempts: cc.Upload.MaxRetries,
				BaseDelay:   cc.Upload.GetRetryDelayDuration(),
			},
		},
		PendingWait:       cc.GetPendingWaitDuration(),
		HeartbeatInterval: cc.GetHeartbeatDuration(),
		Assistant:         cc.Assistant,
		OnSuggestion: func(suggestion string) {
			if suggestion != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n>> %s\n\n", suggestion)
			}
		},
	}, api, logger, sources...)
	if err != nil {
		closeSources(sources, logger)
		return err
	}

	if err := recorder.Start(cmd.Context()); err != nil {
		closeSources(sources, logger)
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Recording session %s, press Ctrl+C to finish\n", recorder.SessionID())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var timeout <-chan time.Time
	if recordDuration > 0 {
		timer := time.NewTimer(recordDuration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case <-timeout:
		logger.Info("Recording duration reached", slog.Duration("duration", recordDuration))
	case <-recorder.Done():
		if len(recordInputs) > 0 {
			logger.Info("Input files fully read")
		} else {
			logger.Warn("Audio capture stopped unexpectedly")
		}
	}
	stop()

	fmt.Fprintln(cmd.ErrOrStderr(), "Finishing uploads and generating analysis...")

	// bounded wait plus one finalize round trip
	stopCtx, cancelStop := context.WithTimeout(context.Background(),
		cc.GetPendingWaitDuration()+cc.GetFinalizeTimeoutDuration())
	defer cancelStop()

	outcome, stopErr := recorder.Stop(stopCtx)
	if outcome != nil {
		if err := writeOutcome(cmd, outcome); err != nil {
			return err
		}
	}
	return stopErr
}

func startSources(cc config.ClientConfig, logger *slog.Logger) ([]capture.Source, error) {
	var sources []capture.Source
	for _, sc := range cc.Sources {
		src, err := capture.StartFFmpeg(context.Background(), capture.FFmpegConfig{
			Name:       sc.Name,
			Command:    cc.FFmpegPath,
			Format:     sc.Format,
			Device:     sc.Device,
			SampleRate: cc.SampleRate,
		})
		if err != nil {
			closeSources(sources, logger)
			return nil, fmt.Errorf("failed to start source %s: %w", sc.Name, err)
		}
		logger.Info("Audio source started",
			slog.String("source", sc.Name),
			slog.String("format", sc.Format),
			slog.String("device", sc.Device))
		sources = append(sources, src)
	}
	return sources, nil
}

// openInputs loads WAV files as sources, named after the configured source
// at the same position when there is one
func openInputs(paths []string, cc config.ClientConfig) ([]capture.Source, error) {
	if len(paths) > 2 {
		return nil, fmt.Errorf("at most two input files are supported, got %d", len(paths))
	}

	var sources []capture.Source
	for i, path := range paths {
		name := ""
		if i < len(cc.Sources) {
			name = cc.Sources[i].Name
		}
		src, err := capture.OpenWAV(name, path, cc.SampleRate)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func closeSources(sources []capture.Source, logger *slog.Logger) {
	for _, src := range sources {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close audio source",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()))
		}
	}
}

func buildSegmenterConfig(cc config.ClientConfig) (audio.SegmenterConfig, error) {
	mixer := audio.Mixer{
		GainA:     float64(cc.Sources[0].Gain),
		GainB:     1,
		Threshold: float64(cc.Mixer.Threshold),
		Ratio:     float64(cc.Mixer.Ratio),
	}
	if len(cc.Sources) > 1 {
		mixer.GainB = float64(cc.Sources[1].Gain)
	}

	segmenterConfig := audio.SegmenterConfig{
		Interval:   cc.GetChunkIntervalDuration(),
		SampleRate: cc.SampleRate,
		Mixer:      mixer,
	}

	if cc.Silence.Enabled {
		detector, err := vad.NewDetector(cc.Silence.Threshold, cc.Silence.WindowSize, cc.SampleRate)
		if err != nil {
			return audio.SegmenterConfig{}, fmt.Errorf("failed to create silence detector: %w", err)
		}
		segmenterConfig.Silence = detector
	}

	return segmenterConfig, nil
}

func writeOutcome(cmd *cobra.Command, outcome *client.Outcome) error {
	out := cmd.OutOrStdout()
	if recordOutput != "" {
		file, err := os.Create(recordOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(outcome)
}
