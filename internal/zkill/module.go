package zkill

import (
	"context"
	"log/slog"
	"time"

	websocketServices "go-gatewatch/internal/websocket/services"
	"go-gatewatch/internal/zkill/routes"
	"go-gatewatch/internal/zkill/services"
	"go-gatewatch/pkg/config"
	"go-gatewatch/pkg/database"
	"go-gatewatch/pkg/evegateway/killmails"
	"go-gatewatch/pkg/module"
	"go-gatewatch/pkg/sde"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module consumes the ZKillboard RedisQ feed and feeds the detection engine.
type Module struct {
	*module.BaseModule

	consumer  *services.RedisQConsumer
	processor *services.KillmailProcessor
	routes    *routes.Routes
}

// NewModule creates a new zkill module instance.
func NewModule(
	mongodb *database.MongoDB,
	redis *database.Redis,
	engine services.Ingestor,
	hub *websocketServices.Hub,
	esiClient killmails.Client,
	sdeService sde.SDEService,
) *Module {
	baseModule := module.NewBaseModule("zkill", mongodb, redis)

	maxKillAge := config.GetDurationEnv("ZKB_MAX_KILL_AGE", 6*time.Hour)
	processor := services.NewKillmailProcessor(engine, hub, sdeService, esiClient, redis, maxKillAge)
	consumer := services.NewRedisQConsumer(processor)

	return &Module{
		BaseModule: baseModule,
		consumer:   consumer,
		processor:  processor,
		routes:     routes.NewRoutes(consumer),
	}
}

// Routes implements the module.Module interface for the chi router. The
// module's endpoints are registered on the huma API instead.
func (m *Module) Routes(r chi.Router) {}

// RegisterRoutes registers the module's HTTP routes on the huma API.
func (m *Module) RegisterRoutes(api huma.API) {
	slog.Info("Registering zkill routes")
	m.routes.RegisterRoutes(api)
}

// StartBackgroundTasks implements the module.Module interface.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	if config.GetBoolEnv("ZKB_ENABLED", true) {
		if err := m.consumer.Start(ctx); err != nil {
			slog.Error("Failed to auto-start RedisQ consumer", "error", err)
		}
	} else {
		slog.Info("ZKB_ENABLED not set, consumer ready for manual start via API")
	}
}

// Stop implements the module.Module interface.
func (m *Module) Stop() {
	slog.Info("Stopping zkill module")

	if m.consumer.IsRunning() {
		if err := m.consumer.Stop(); err != nil {
			slog.Warn("Failed to stop consumer gracefully", "error", err)
		}
	}

	m.BaseModule.Stop()
}

// GetConsumer returns the RedisQ consumer for external access.
func (m *Module) GetConsumer() *services.RedisQConsumer {
	return m.consumer
}

// GetProcessor returns the killmail processor for external access.
func (m *Module) GetProcessor() *services.KillmailProcessor {
	return m.processor
}
