package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	configLoader "github.com/andiksetyawan/config"

	"schema-drift-monitor/internal/app"
	"schema-drift-monitor/internal/config"
	"schema-drift-monitor/internal/handlers"
)

func main() {
	log.Println("Loading configuration...")

	cfg := &config.AppConfig{}
	loader := configLoader.New(
		configLoader.WithEnvPath(".env"),
	)

	if err := loader.Load(cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	logger.Info("configuration loaded", "port", cfg.Server.Port, "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if cfg.Monitor.AutoStart {
		if err := application.MonitorService.Start(); err != nil {
			logger.Error("failed to start monitor", "error", err)
			os.Exit(1)
		}
	}

	handler := handlers.NewHandler(application.MonitorService, logger)
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: handlers.NewRouter(handler, application.Metrics.Handler(), cfg.Server.CORSOrigins),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
