package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"go-gatewatch/internal/detector"
	"go-gatewatch/internal/websocket"
	"go-gatewatch/internal/zkill"
	"go-gatewatch/pkg/app"
	"go-gatewatch/pkg/config"
	"go-gatewatch/pkg/evegateway"
	"go-gatewatch/pkg/evegateway/killmails"
	"go-gatewatch/pkg/module"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "go.uber.org/automaxprocs"
)

// customLoggerMiddleware logs requests but excludes health check endpoints
func customLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}
		middleware.Logger(next).ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers. The activity feed is consumed by browser
// frontends on other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := config.GetEnv("CORS_ALLOWED_ORIGIN", "*")
		origin := r.Header.Get("Origin")

		if allowed == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && strings.HasSuffix(origin, allowed) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	log.Printf("🖥️  CPUs: %d | GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	ctx := context.Background()

	// Initialize application with shared components
	appCtx, err := app.InitializeApp("gatewatch")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer appCtx.Shutdown(ctx)

	// Initialize Chi router
	r := chi.NewRouter()

	// Global middleware
	r.Use(customLoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	// ESI client for killmail fallback fetches
	userAgent := config.GetEnv("ESI_USER_AGENT", "go-gatewatch/1.0")
	retryClient := evegateway.NewDefaultRetryClient(&http.Client{Timeout: 30 * time.Second})
	esiClient := killmails.NewKillmailClient(
		config.GetEnv("ESI_BASE_URL", "https://esi.evetech.net"),
		userAgent,
		retryClient,
	)

	// Initialize modules. The detector owns the engine; the websocket module
	// serves its snapshot to new subscribers; zkill feeds it from RedisQ.
	detectorModule := detector.NewModule(appCtx.MongoDB, appCtx.Redis, appCtx.SDEService, nil)
	websocketModule := websocket.NewModule(func() interface{} {
		return detectorModule.Engine().Snapshot()
	})
	detectorModule.SetHub(websocketModule.Hub())
	zkillModule := zkill.NewModule(
		appCtx.MongoDB,
		appCtx.Redis,
		detectorModule.Engine(),
		websocketModule.Hub(),
		esiClient,
		appCtx.SDEService,
	)

	modules := []module.Module{detectorModule, websocketModule, zkillModule}

	if err := detectorModule.Initialize(ctx); err != nil {
		slog.Warn("Failed to create archive indexes", "error", err)
	}

	// Create unified Huma API configuration
	apiPrefix := config.GetEnv("API_PREFIX", "")
	humaConfig := huma.DefaultConfig("GateWatch API", "1.0.0")
	humaConfig.Info.Description = "EVE Online PvP activity detection: gate camps, roams and battles from the live killmail feed"

	var api huma.API
	if apiPrefix == "" {
		api = humachi.New(r, humaConfig)
	} else {
		r.Route(apiPrefix, func(prefixRouter chi.Router) {
			api = humachi.New(prefixRouter, humaConfig)
		})
	}

	detectorModule.RegisterRoutes(api)
	zkillModule.RegisterRoutes(api)

	// Websocket and health endpoints live on the chi router directly
	for _, mod := range modules {
		mod.Routes(r)
	}
	r.Get("/health", detectorModule.HealthHandler())

	// Start background services for all modules
	for _, mod := range modules {
		go mod.StartBackgroundTasks(ctx)
	}

	// HTTP server setup
	port := app.GetPort("8080")
	host := config.GetEnv("HOST", "0.0.0.0")

	var handler http.Handler = r
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		handler = otelhttp.NewHandler(r, "gatewatch")
	}

	srv := &http.Server{
		Addr:         host + ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting gatewatch server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Stop zkill first so no events arrive while the detector drains
	for i := len(modules) - 1; i >= 0; i-- {
		modules[i].Stop()
	}

	appCtx.Shutdown(shutdownCtx)

	slog.Info("Gatewatch shutdown completed successfully")
}
