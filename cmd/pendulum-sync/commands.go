package main

import (
	"github.com/andresuchdata/pendulum-sync/pkg/logger"
	"github.com/urfave/cli/v2"
)

func runAll(c *cli.Context) error {
	orch, cleanup, err := newOrchestrator(c, true)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := orch.Run(c.Context)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("chat_report", result.Reports.ChatPath).
		Str("gameplay_report", result.Reports.GameplayPath).
		Msg("all done")
	return nil
}

func runDownload(c *cli.Context) error {
	orch, cleanup, err := newOrchestrator(c, true)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = orch.DownloadAll(c.Context)
	return err
}

func runMirror(c *cli.Context) error {
	orch, cleanup, err := newOrchestrator(c, false)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = orch.Mirror(c.Context)
	return err
}

func runReports(c *cli.Context) error {
	orch, cleanup, err := newOrchestrator(c, false)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = orch.Reports(c.Context)
	return err
}
