package detector

import (
	"context"
	"log/slog"
	"time"

	"go-gatewatch/internal/detector/routes"
	"go-gatewatch/internal/detector/services"
	websocketModels "go-gatewatch/internal/websocket/models"
	websocketServices "go-gatewatch/internal/websocket/services"
	"go-gatewatch/pkg/config"
	"go-gatewatch/pkg/database"
	"go-gatewatch/pkg/module"
	"go-gatewatch/pkg/sde"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
)

// Module runs the activity detection engine and the session archive.
type Module struct {
	*module.BaseModule

	engine     *services.Engine
	repository *services.Repository
	archiver   *services.Archiver
	routes     *routes.Routes
	hub        *websocketServices.Hub
	scheduler  *cron.Cron

	tickInterval  time.Duration
	flushInterval time.Duration
}

// NewModule creates a new detector module instance. The hub may be nil when
// no websocket feed is wired; MongoDB may be nil, which disables the archive.
func NewModule(
	mongodb *database.MongoDB,
	redis *database.Redis,
	sdeService sde.SDEService,
	hub *websocketServices.Hub,
) *Module {
	baseModule := module.NewBaseModule("detector", mongodb, redis)

	cfg := services.ConfigFromEnv()
	engine := services.NewEngine(cfg, sdeService, nil)

	var repository *services.Repository
	if mongodb != nil {
		repository = services.NewRepository(mongodb.Database)
	} else {
		slog.Warn("MongoDB unavailable, session archive disabled")
	}

	return &Module{
		BaseModule:    baseModule,
		engine:        engine,
		repository:    repository,
		archiver:      services.NewArchiver(engine, repository),
		routes:        routes.NewRoutes(engine, repository),
		hub:           hub,
		scheduler:     cron.New(),
		tickInterval:  config.GetDurationEnv("DETECTOR_TICK_INTERVAL", 30*time.Second),
		flushInterval: config.GetDurationEnv("DETECTOR_FLUSH_INTERVAL", time.Minute),
	}
}

// Engine returns the detection engine for other modules to feed.
func (m *Module) Engine() *services.Engine {
	return m.engine
}

// SetHub wires the websocket hub for tick broadcasts. Call before
// StartBackgroundTasks.
func (m *Module) SetHub(hub *websocketServices.Hub) {
	m.hub = hub
}

// Initialize creates the archive indexes.
func (m *Module) Initialize(ctx context.Context) error {
	if m.repository == nil {
		return nil
	}
	return m.repository.CreateIndexes(ctx)
}

// Routes implements the module.Module interface for the chi router. The
// module's endpoints are registered on the huma API instead.
func (m *Module) Routes(r chi.Router) {}

// RegisterRoutes registers the module's HTTP routes on the huma API.
func (m *Module) RegisterRoutes(api huma.API) {
	slog.Info("Registering detector routes")
	m.routes.RegisterRoutes(api)
}

// StartBackgroundTasks implements the module.Module interface. It runs the
// engine tick loop, the archive flush loop and the hourly maintenance job.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	go m.tickLoop(ctx)
	go m.flushLoop(ctx)

	if m.repository != nil {
		_, err := m.scheduler.AddFunc("0 * * * *", func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			cutoff := time.Now().Add(-90 * 24 * time.Hour)
			if deleted, err := m.repository.DeleteStaleSessions(sweepCtx, cutoff); err != nil {
				slog.Warn("Session maintenance sweep failed", "error", err)
			} else if deleted > 0 {
				slog.Info("Session maintenance sweep completed", "deleted", deleted)
			}
		})
		if err != nil {
			slog.Error("Failed to schedule maintenance sweep", "error", err)
		} else {
			m.scheduler.Start()
		}
	}

	slog.Info("Detector module started",
		"tick_interval", m.tickInterval,
		"flush_interval", m.flushInterval,
		"archive_enabled", m.repository != nil)
}

// tickLoop ages crews on a fixed cadence and pushes snapshot updates to
// websocket subscribers whenever the tick changed anything.
func (m *Module) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.StopChannel():
			return
		case <-ticker.C:
			if m.engine.Tick() && m.hub != nil {
				m.hub.Broadcast(websocketModels.MessageTypeActivityUpdate, m.engine.Snapshot())
			}
		}
	}
}

// flushLoop drains closed sessions into the archive.
func (m *Module) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.StopChannel():
			return
		case <-ticker.C:
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			m.archiver.Flush(flushCtx)
			cancel()
		}
	}
}

// Stop implements the module.Module interface. A final tick and flush run so
// sessions closed at shutdown still reach the archive.
func (m *Module) Stop() {
	slog.Info("Stopping detector module")

	stopCtx := m.scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		slog.Warn("Maintenance job still running at shutdown")
	}

	m.engine.Tick()
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	m.archiver.Flush(flushCtx)
	cancel()

	m.BaseModule.Stop()
}
