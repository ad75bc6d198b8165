package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/petems/stereo-recorder/internal/app"
	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/petems/stereo-recorder/internal/capture"
	"github.com/petems/stereo-recorder/internal/logging"
	"github.com/petems/stereo-recorder/internal/observe"
	"github.com/petems/stereo-recorder/internal/wavfile"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	argRecordOut         string
	argRecordSplit       bool
	argRecordDuration    time.Duration
	argRecordSimulate    bool
	argRecordBackend     string
	argRecordDevice      string
	argRecordMetricsAddr string

	recordCmd = &cobra.Command{
		Use:   "record",
		Short: "Record without the tray until interrupted or --duration elapses",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd)
		},
	}
)

func init() {
	recordCmd.Flags().StringVarP(&argRecordOut, "out", "o", "", "Directory for the recording (defaults to the configured output directory)")
	recordCmd.Flags().BoolVarP(&argRecordSplit, "split", "s", false, "Write left and right channels to separate mono files")
	recordCmd.Flags().DurationVarP(&argRecordDuration, "duration", "d", 0, "Stop after this long (0 records until interrupted)")
	recordCmd.Flags().BoolVarP(&argRecordSimulate, "simulate", "", false, "Record a generated test tone instead of a device")
	recordCmd.Flags().StringVarP(&argRecordBackend, "backend", "b", "", "Audio backend: portaudio, malgo or sim")
	recordCmd.Flags().StringVarP(&argRecordDevice, "device", "", "", "Input device name")
	recordCmd.Flags().StringVarP(&argRecordMetricsAddr, "metrics-addr", "", "", "Serve Prometheus metrics on this address while recording")

	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if argRecordBackend != "" {
		cfg.Audio.Backend = argRecordBackend
	}
	if argRecordSimulate {
		cfg.Audio.Backend = audio.BackendSim
	}
	if argRecordDevice != "" {
		cfg.Audio.DeviceID = argRecordDevice
	}
	if cmd.Flags().Changed("split") {
		cfg.Output.SplitChannels = argRecordSplit
	}
	if argRecordOut != "" {
		cfg.Output.Directory = argRecordOut
		cfg.Output.DailySubdirs = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.NewWithLevel(cfg.LogLevel)
	recordingID := uuid.NewString()
	log = log.With().Str("recording_id", recordingID).Logger()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := audio.New(cfg.Audio)
	if err != nil {
		return err
	}
	defer backend.Close()

	metrics := observe.Nop()
	if argRecordMetricsAddr != "" {
		m, shutdown, err := startMetrics(ctx, argRecordMetricsAddr, log)
		if err != nil {
			return err
		}
		defer shutdown()
		metrics = m
	}

	session, err := capture.NewSession(app.SessionConfig(cfg.Audio), backend,
		capture.WithLogger(log),
		capture.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	defer session.CleanUp()

	dir := cfg.Output.Directory
	if cfg.Output.DailySubdirs {
		dir = filepath.Join(dir, "wav_samples_"+time.Now().Format("01_02"))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	files, err := session.Start(dir, cfg.Output.SplitChannels)
	if err != nil {
		return err
	}
	sz := session.Sizing()
	log.Info().
		Strs("files", files).
		Str("backend", backend.Name()).
		Int("frame_period", sz.FramePeriod).
		Int("buffer_size", sz.BufferSize).
		Msg("Recording, press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		if argRecordDuration > 0 {
			timer := time.NewTimer(argRecordDuration)
			defer timer.Stop()
			select {
			case <-gctx.Done():
			case <-timer.C:
			}
		} else {
			<-gctx.Done()
		}

		count, err := session.Stop()
		log.Info().Int("recordings", count).Int64("payload_bytes", session.PayloadSize()).Msg("Recording stopped")
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				st := session.Stats()
				log.Debug().
					Int64("bytes", st.BytesWritten).
					Int64("cycles", st.Cycles).
					Int64("read_errors", st.ReadErrors).
					Int64("write_errors", st.WriteErrors).
					Msg("Recording progress")
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range files {
		info, err := wavfile.Inspect(path)
		if err != nil {
			fmt.Fprintf(out, "%s\t(unreadable: %v)\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%d bytes\n", path, info.Duration.Round(time.Millisecond), info.DeclaredPayload)
	}
	return nil
}
