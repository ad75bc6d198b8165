package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/petems/stereo-recorder/internal/observe"
	"github.com/rs/zerolog"
)

// startMetrics installs the Prometheus exporter and serves /metrics on addr.
// The returned function stops the server and flushes the provider.
func startMetrics(ctx context.Context, addr string, log zerolog.Logger) (*observe.Metrics, func(), error) {
	mp, shutdownProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return nil, nil, err
	}
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		_ = shutdownProvider(ctx)
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = shutdownProvider(ctx)
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	return metrics, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = shutdownProvider(shutdownCtx)
	}, nil
}
