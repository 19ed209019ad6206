package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresuchdata/pendulum-sync/internal/cache"
	"github.com/andresuchdata/pendulum-sync/internal/config"
	"github.com/andresuchdata/pendulum-sync/internal/pipeline"
	"github.com/andresuchdata/pendulum-sync/internal/storage"
	"github.com/andresuchdata/pendulum-sync/pkg/logger"
	"github.com/urfave/cli/v2"
)

type configKey struct{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("pendulum-sync failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pendulum-sync",
		Usage: "Download Pendulum user data from cloud storage, mirror it and build summary reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of concurrent downloads",
				EnvVars: []string{"DOWNLOAD_WORKERS"},
			},
		},
		Before: loadConfig,
		Action: runAll,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Download, mirror and regenerate reports",
				Action: runAll,
			},
			{
				Name:   "download",
				Usage:  "Download new and changed objects only",
				Action: runDownload,
			},
			{
				Name:   "mirror",
				Usage:  "Copy the local data trees to the mirror root",
				Action: runMirror,
			},
			{
				Name:   "report",
				Usage:  "Regenerate the chat and gameplay summary reports",
				Action: runReports,
			},
			{
				Name:  "serve",
				Usage: "Serve the latest summary reports over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Usage:   "HTTP listen port",
						EnvVars: []string{"SERVER_PORT"},
					},
				},
				Action: serve,
			},
		},
	}
}

// loadConfig reads the environment, applies global flag overrides and sets
// the log level before any command runs.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("workers") {
		cfg.Download.Workers = c.Int("workers")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger.SetLevel(cfg.LogLevel)
	c.Context = context.WithValue(c.Context, configKey{}, cfg)
	return nil
}

func configFrom(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.Context.Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// newOrchestrator builds the pipeline. withStore is false for steps that only
// work on the local trees.
func newOrchestrator(c *cli.Context, withStore bool) (*pipeline.Orchestrator, func(), error) {
	cfg, err := configFrom(c)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error

	var store storage.ObjectStorage
	if withStore {
		store, err = storage.New(c.Context, cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, store.Close)
	}

	reportCache, err := cache.NewReportCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("report cache unavailable, continuing without it")
		reportCache = cache.NewNoopReportCache()
	}
	closers = append(closers, reportCache.Close)

	cleanup := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Log.Warn().Err(err).Msg("close failed")
			}
		}
	}

	return pipeline.NewOrchestrator(store, cfg, reportCache), cleanup, nil
}
