package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"photocontest/internal/app/bootstrap"
	"photocontest/internal/platform/config"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the contest service",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := commonRun(cfg)

	app, err := bootstrap.Build(*cfg, logger)
	if err != nil {
		logger.Error("failed to build app",
			"event", "contestd_build_failed",
			"component", programName,
			"error", err.Error(),
		)
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close app",
				"event", "contestd_close_failed",
				"component", programName,
				"error", err.Error(),
			)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
