package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/api"
	"github.com/andresuchdata/pendulum-sync/internal/cache"
	"github.com/andresuchdata/pendulum-sync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 5 * time.Second

func serve(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.String("port")
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	reportCache, err := cache.NewReportCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("report cache unavailable, serving from disk")
		reportCache = cache.NewNoopReportCache()
	}
	defer reportCache.Close()

	router := api.NewRouter(&api.Dependencies{
		ReportCache: reportCache,
		ChatDir:     cfg.Paths.ChatDir,
		GameplayDir: cfg.Paths.GameplayDir,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("port", port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}

	logger.Log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	logger.Log.Info().Msg("Server exiting")
	return nil
}
