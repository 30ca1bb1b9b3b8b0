package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sdx-topology/infrastructure/config"
	"sdx-topology/infrastructure/di"
	"sdx-topology/interfaces/http/rest"

	"go.uber.org/zap"
)

// @title SDX Topology API
// @version 1.0
// @description Versions and publishes the topology of an SDX open exchange point.
// @BasePath /api/v1
// @schemes http https
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

	// The store must hold a record before the first event is handled.
	if _, err := di.Bootstrap(ctx, container); err != nil {
		logger.Fatal("Failed to initialize topology store", zap.Error(err))
	}

	router := rest.NewRouter(container.Service, container.Metrics, rest.Options{
		EnableCORS:    cfg.EnableCORS,
		EnableMetrics: cfg.EnableMetrics,
		Debug:         cfg.IsDevelopment(),
	}, logger)

	// Publishing waits on three collaborators in turn, so writes get room for all of them.
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 4*cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("storeBackend", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shut down cleanly: %v", err)
	}

	log.Println("Server stopped")
}
