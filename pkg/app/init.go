package app

import (
	"context"
	"log"
	"log/slog"

	"go-gatewatch/pkg/config"
	"go-gatewatch/pkg/database"
	"go-gatewatch/pkg/logging"
	"go-gatewatch/pkg/sde"

	"github.com/joho/godotenv"
)

// AppContext holds the shared application context and dependencies.
type AppContext struct {
	MongoDB          *database.MongoDB
	Redis            *database.Redis
	SDEService       sde.SDEService
	TelemetryManager *logging.TelemetryManager
	ServiceName      string
	shutdownFuncs    []func(context.Context) error
}

// InitializeApp initializes common application dependencies.
func InitializeApp(serviceName string) (*AppContext, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	ctx := context.Background()

	telemetryManager := logging.NewTelemetryManager()
	if err := telemetryManager.Initialize(ctx); err != nil {
		log.Printf("Warning: Failed to initialize telemetry: %v", err)
	}

	mongodb, err := database.NewMongoDB(ctx, serviceName)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		// Continue without MongoDB, the archive writer is optional
	}

	redis, err := database.NewRedis(ctx)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		// Continue without Redis, deduplication falls back to in-memory state
	}

	sdeDir := config.GetEnv("SDE_DATA_DIR", "data/sde")
	sdeService := sde.NewService(sdeDir)
	slog.Info("SDE service initialized", "data_dir", sdeDir)

	appCtx := &AppContext{
		MongoDB:          mongodb,
		Redis:            redis,
		SDEService:       sdeService,
		TelemetryManager: telemetryManager,
		ServiceName:      serviceName,
	}

	if mongodb != nil {
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, mongodb.Close)
	}
	if redis != nil {
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, func(ctx context.Context) error {
			return redis.Close()
		})
	}
	if telemetryManager != nil {
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, telemetryManager.Shutdown)
	}

	return appCtx, nil
}

// Shutdown gracefully shuts down all application dependencies.
func (a *AppContext) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application", "service", a.ServiceName)

	for _, shutdown := range a.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}

	slog.Info("Application shutdown completed", "service", a.ServiceName)
	return nil
}

// GetPort returns the HTTP port from the environment or the default.
func GetPort(defaultPort string) string {
	return config.GetEnv("PORT", defaultPort)
}

// IsProduction reports whether the service runs in production mode.
func IsProduction() bool {
	return config.GetEnv("ENVIRONMENT", "development") == "production"
}
