package photocontest

import (
	"context"
	"log/slog"

	httpadapter "photocontest/contexts/community-experience/photo-contest/adapters/http"
	"photocontest/contexts/community-experience/photo-contest/adapters/memory"
	postgresadapter "photocontest/contexts/community-experience/photo-contest/adapters/postgres"
	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/application/queries"
	"photocontest/contexts/community-experience/photo-contest/application/workers"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Manager  *commands.Manager
	Consumer workers.PlatformEventConsumer
	Archiver workers.ResultArchiver
	Platform *memory.Platform
	Archive  *memory.Archive
}

type Dependencies struct {
	Settings        commands.Settings
	Platform        ports.Platform
	Clock           ports.Clock
	Timers          ports.TimerFactory
	IDGen           ports.IDGenerator
	Publisher       ports.EventPublisher
	Subscriber      ports.EventSubscriber
	Archive         ports.ResultArchive
	Metrics         ports.Metrics
	DisableConsumer bool
	DisableArchiver bool
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	manager := commands.NewManager(commands.Config{
		Settings: deps.Settings,
		Platform: deps.Platform,
		Clock:    deps.Clock,
		Timers:   deps.Timers,
		IDGen:    deps.IDGen,
		Events:   deps.Publisher,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
	})
	results := queries.ResultsQuery{
		Archive: deps.Archive,
		Logger:  deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Manager: manager,
			Results: results,
			Events:  deps.Publisher,
			IDGen:   deps.IDGen,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
		Manager: manager,
		Consumer: workers.PlatformEventConsumer{
			Subscriber: deps.Subscriber,
			Manager:    manager,
			Disabled:   deps.DisableConsumer,
			Logger:     deps.Logger,
		},
		Archiver: workers.ResultArchiver{
			Subscriber: deps.Subscriber,
			Archive:    deps.Archive,
			Disabled:   deps.DisableArchiver,
			Logger:     deps.Logger,
		},
	}
}

// StartWorkers subscribes the module's consumers. They stop with ctx.
func (m Module) StartWorkers(ctx context.Context) error {
	if err := m.Consumer.Start(ctx); err != nil {
		return err
	}
	return m.Archiver.Start(ctx)
}

// NewInMemoryModule wires the module against an in-process platform and
// archive with wall-clock timers. The caller supplies the event bus.
func NewInMemoryModule(
	settings commands.Settings,
	publisher ports.EventPublisher,
	subscriber ports.EventSubscriber,
	logger *slog.Logger,
) Module {
	platform := memory.NewPlatform()
	archive := memory.NewArchive()
	clock := postgresadapter.SystemClock{}
	module := NewModule(Dependencies{
		Settings:   settings,
		Platform:   platform,
		Clock:      clock,
		Timers:     clock,
		IDGen:      memory.IDGenerator{},
		Publisher:  publisher,
		Subscriber: subscriber,
		Archive:    archive,
		Logger:     logger,
	})
	module.Platform = platform
	module.Archive = archive
	return module
}
