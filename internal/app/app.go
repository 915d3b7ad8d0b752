// -----------------------------------------------------------------------
// Application wiring - storage, sites, events, middleware, handlers
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/events"
	"github.com/ternarybob/lwfm/internal/handlers"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/services/middleware"
	"github.com/ternarybob/lwfm/internal/sites"
	"github.com/ternarybob/lwfm/internal/sites/local"
	"github.com/ternarybob/lwfm/internal/storage/sqlite"
)

// App holds all application components and dependencies.
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Site layer
	Registry *sites.Registry
	Bridge   *sites.Bridge

	// Event layer
	Processor   *events.Processor
	Maintenance *events.Maintenance

	// Middleware façade
	Manager *middleware.LwfManager

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	VerbHandler *handlers.VerbHandler
	WSHandler   *handlers.WSHandler
}

// New initializes the application with all dependencies. Components are
// wired bottom-up: storage, then sites, then the event processor, then
// the façade, which is bound back into the registry and processor as
// their runtime.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := sqlite.NewManager(logger, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager
	logger.Debug().
		Str("storage", "sqlite").
		Str("path", cfg.Store.Path).
		Msg("Storage layer initialized")

	app.Registry = sites.NewRegistry(cfg.Sites, logger)
	app.Registry.RegisterClass(local.Class, local.New)
	app.Bridge = sites.NewBridge(app.Registry, logger)
	logger.Debug().Int("sites", len(cfg.Sites)).Msg("Site registry initialized")

	app.Processor = events.GetProcessor(storageManager, app.Bridge, cfg.Events, logger)

	app.Manager = middleware.New(storageManager, app.Bridge, app.Processor, logger)

	// The façade is the runtime the drivers and the processor call back
	// into for status emission and data notation.
	app.Registry.BindRuntime(app.Manager)
	app.Processor.BindRuntime(app.Manager)

	if err := app.Processor.Start(); err != nil {
		return nil, fmt.Errorf("failed to start event processor: %w", err)
	}
	logger.Debug().Msg("Event processor started")

	maintenance, err := events.NewMaintenance(storageManager, cfg.Maintenance, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize maintenance: %w", err)
	}
	app.Maintenance = maintenance
	if err := app.Maintenance.Start(); err != nil {
		return nil, fmt.Errorf("failed to start maintenance: %w", err)
	}
	logger.Debug().Str("schedule", cfg.Maintenance.Schedule).Msg("Maintenance sweep scheduled")

	app.initHandlers()

	logger.Info().
		Int("sites", len(cfg.Sites)).
		Msg("Application initialization complete")

	return app, nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.VerbHandler = handlers.NewVerbHandler(a.Manager, a.Logger)
	a.WSHandler = handlers.NewWSHandler(a.Manager.Stream(), a.Logger)
}

// Close shuts down all application resources in reverse dependency order.
func (a *App) Close() error {
	if a.Maintenance != nil {
		a.Maintenance.Stop()
		a.Logger.Info().Msg("Maintenance sweep stopped")
	}

	if a.Processor != nil {
		if err := a.Processor.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop event processor")
		} else {
			a.Logger.Info().Msg("Event processor stopped")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
