package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	photocontest "photocontest/contexts/community-experience/photo-contest"
	"photocontest/contexts/community-experience/photo-contest/adapters/gateway"
	"photocontest/contexts/community-experience/photo-contest/adapters/memory"
	postgresadapter "photocontest/contexts/community-experience/photo-contest/adapters/postgres"
	prometheusadapter "photocontest/contexts/community-experience/photo-contest/adapters/prometheus"
	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/ports"
	"photocontest/internal/platform/config"
	"photocontest/internal/platform/db"
	"photocontest/internal/platform/httpserver"
	"photocontest/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type App struct {
	cfg      config.Config
	module   photocontest.Module
	server   *httpserver.Server
	bus      *messaging.Bus
	database *db.Database
	logger   *slog.Logger
}

func Build(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bus := messaging.NewBus(registry, logger)

	var platform ports.Platform
	var dryRunPlatform *memory.Platform
	if cfg.DryRun {
		dryRunPlatform = memory.NewPlatform()
		platform = dryRunPlatform
	} else {
		platform = gateway.NewClient(cfg.GatewayURL, gateway.WithToken(cfg.GatewayToken))
	}

	archive, database, err := buildArchive(cfg, logger)
	if err != nil {
		return nil, err
	}

	clock := postgresadapter.SystemClock{}
	module := photocontest.NewModule(photocontest.Dependencies{
		Settings: commands.Settings{
			GuildID:           cfg.GuildID,
			PhotoChannelID:    cfg.PhotoChannelID,
			ResultChannelID:   cfg.ResultChannelID,
			VoteMarker:        cfg.VoteMarker,
			RoleMentions:      cfg.RoleMentions,
			DefaultTieMinutes: cfg.DefaultTieMinutes,
			MaxTieMinutes:     cfg.MaxTieMinutes,
		},
		Platform:        platform,
		Clock:           clock,
		Timers:          clock,
		IDGen:           postgresadapter.UUIDGenerator{},
		Publisher:       bus,
		Subscriber:      bus,
		Archive:         archive,
		Metrics:         prometheusadapter.NewMetrics(registry),
		DisableConsumer: !cfg.EnablePlatformConsumer,
		DisableArchiver: !cfg.EnableResultArchiver,
		Logger:          logger,
	})
	module.Platform = dryRunPlatform

	return &App{
		cfg:      cfg,
		module:   module,
		server:   httpserver.New(module, registry, cfg.WebhookSecret, logger, normalizeAddr(cfg.HTTPPort)),
		bus:      bus,
		database: database,
		logger:   logger,
	}, nil
}

func buildArchive(cfg config.Config, logger *slog.Logger) (ports.ResultArchive, *db.Database, error) {
	switch strings.TrimSpace(cfg.ArchiveDriver) {
	case "", "memory":
		return memory.NewArchive(), nil, nil
	}
	database, err := db.Connect(cfg.ArchiveDriver, cfg.ArchiveDSN)
	if err != nil {
		return nil, nil, err
	}
	repo := postgresadapter.NewRepository(database.DB, logger)
	if err := repo.Migrate(context.Background()); err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("migrate results archive: %w", err)
	}
	return repo, database, nil
}

// Run starts the workers and the HTTP server and blocks until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if err := a.module.StartWorkers(gctx); err != nil {
		return err
	}

	a.logger.Info("contest app started",
		"event", "bootstrap_app_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"dry_run", a.cfg.DryRun,
		"archive_driver", a.cfg.ArchiveDriver,
	)

	g.Go(func() error {
		return a.server.Run(gctx, a.cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.bus.Wait()
		return nil
	})
	return g.Wait()
}

func (a *App) Module() photocontest.Module {
	return a.module
}

func (a *App) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
