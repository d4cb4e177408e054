package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ecgview/internal/cache"
	"ecgview/internal/config"
	"ecgview/internal/discovery"
	"ecgview/internal/logger"
	"ecgview/internal/server"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Build logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect the render cache
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	renderCache, err := cache.New(startCtx, cfg.Cache)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Cache.Driver).Msg("cache unavailable, rendering without cache")
		renderCache = cache.Nop{}
	}

	// 4. Build the server
	srv, err := server.New(cfg, &log, renderCache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}
	if err := srv.SetupHTTPServer(); err != nil {
		log.Fatal().Err(err).Msg("failed to set up HTTP server")
	}

	// 5. Answer LAN discovery probes
	if cfg.Discovery.Enabled {
		baseURL := srv.BaseURL(discovery.LocalIP())
		go func() {
			if err := discovery.Listen(ctx, cfg.Discovery.Port, baseURL, log); err != nil {
				log.Error().Err(err).Msg("discovery stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
	}

	// 6. Drain
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	log.Info().Msg("server exited properly")
}
