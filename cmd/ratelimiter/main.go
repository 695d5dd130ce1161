package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ratelimiter/internal/api"
	"ratelimiter/internal/config"
	"ratelimiter/internal/logger"
	"ratelimiter/internal/observability"
	"ratelimiter/internal/ratelimit"
	"ratelimiter/internal/store"
	"ratelimiter/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log.With(slog.String("version", ver.Version)))

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize the key store
	keyStore, err := store.NewFactory().Create(context.Background(), cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize key store", "error", err)
		os.Exit(1)
	}
	defer keyStore.Close()

	// Wrap the store with instrumentation if metrics are enabled
	activeStore := keyStore
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStore(keyStore)
		if err != nil {
			slog.Error("Failed to create instrumented store", "error", err)
			os.Exit(1)
		}
		activeStore = instrumented
	}

	// Initialize the decision engine and policy registry
	limiter := ratelimit.New(activeStore)
	registry := ratelimit.NewRegistry(cfg.Limits.Policies, cfg.Limits.DefaultPolicy)

	// Initialize HTTP handlers
	handlerOpts := []api.HandlerOption{}
	if cfg.Metrics.Enabled {
		decisionMetrics, err := observability.NewDecisionMetrics()
		if err != nil {
			slog.Error("Failed to create decision metrics", "error", err)
			os.Exit(1)
		}
		handlerOpts = append(handlerOpts, api.WithDecisionRecorder(decisionMetrics))
	}
	handlers := api.NewHandlers(limiter, registry, cfg, ver.Version, handlerOpts...)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Enforce the default policy on the service's own endpoints when
	// configured. Health checks are always exempt.
	if def, ok := registry.Default(); ok {
		enforcement := ratelimit.Middleware(limiter, def,
			ratelimit.WithFailOpen(cfg.Limits.FailOpen),
		)
		routeOpts = append(routeOpts, api.WithEnforcement(enforcement))
	}

	guard := api.NewAdminGuard(cfg.Security.AdminRatePerSecond, cfg.Security.AdminBurst, 5*time.Minute)
	defer guard.Close()

	router := api.SetupRoutes(handlers, cfg, guard, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "store", cfg.Store.Type, "policies", len(cfg.Limits.Policies))

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}
