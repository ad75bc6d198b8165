package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/stereo-recorder/internal/app"
	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/petems/stereo-recorder/internal/config"
	"github.com/petems/stereo-recorder/internal/hotkey"
	"github.com/petems/stereo-recorder/internal/logging"
	"github.com/petems/stereo-recorder/internal/observe"
	"github.com/petems/stereo-recorder/internal/permissions"
	"github.com/petems/stereo-recorder/internal/tray"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var (
	argConfig string

	rootCmd = &cobra.Command{
		Use:          "stereo-recorder",
		Short:        "Record stereo input to WAV, optionally one file per channel",
		Version:      Version,
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runTray(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&argConfig, "config", "c", "", "Config file (.json or .yaml); defaults to the platform config path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise the platform config.
func loadConfig() (*config.Config, error) {
	if argConfig != "" {
		return config.LoadFile(argConfig)
	}
	return config.Load()
}

func runTray(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Error().Err(err).Msg("Failed to load config")
		return err
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	// macOS requires explicit microphone approval, and accessibility approval for the hotkey
	if err := permissions.EnsurePermissions(cfg.PlatformHotkey() != ""); err != nil {
		switch {
		case errors.Is(err, permissions.ErrAccessibility):
			log.Error().Err(err).Msg("Grant access in System Settings > Privacy & Security > Accessibility")
		default:
			log.Error().Err(err).Msg("Microphone access is required to record")
		}
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize audio backend
	backend, err := audio.New(cfg.Audio)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return err
	}
	defer backend.Close()

	metrics := observe.Nop()
	if cfg.Metrics.Enabled {
		m, shutdown, err := startMetrics(ctx, cfg.Metrics.Addr, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start metrics")
			return err
		}
		defer shutdown()
		metrics = m
	}

	// Initialize hotkey manager
	hkManager, err := hotkey.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize hotkeys")
		return err
	}
	defer hkManager.Close()

	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(nil, cfg, log, Version, Commit) // App reference set below

	// Create app with tray as status updater
	application := app.New(app.Config{
		Devices:       backend,
		NewRecorder:   app.NewSessionFactory(backend, log, metrics),
		Config:        cfg,
		Logger:        log,
		StatusUpdater: trayUI,
	})

	// Set app reference in tray
	trayUI.SetApp(application)

	// Register global hotkey
	if err := hkManager.Register(cfg.PlatformHotkey(), application.OnHotkey); err != nil {
		log.Error().Err(err).Msg("Failed to register hotkey")
		return err
	}

	log.Info().Str("version", Version).Str("backend", backend.Name()).Msg("Stereo Recorder starting...")

	// Start tray UI - MUST run on main thread. Quitting or a signal runs the
	// tray's exit hook, which stops and cleans up the recorder.
	if err := trayUI.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Tray error")
		return err
	}
	return nil
}
