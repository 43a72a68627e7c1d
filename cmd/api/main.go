package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flowcanvas-backend/infrastructure/config"
	"flowcanvas-backend/infrastructure/di"
)

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

	watcher, err := config.NewWatcher(cfg, container.Logger)
	if err != nil {
		container.Logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Stop()
		// The log level is the one setting that can take effect without
		// a restart; everything else is bound at container build time.
		watcher.OnReload(func(fresh *config.Config) {
			level, err := zapcore.ParseLevel(fresh.LogLevel)
			if err != nil {
				container.Logger.Warn("ignoring invalid log level",
					zap.String("logLevel", fresh.LogLevel),
				)
				return
			}
			container.LogLevel.SetLevel(level)
			container.Logger.Info("log level updated", zap.String("logLevel", fresh.LogLevel))
		})
	}

	handler := container.Router.Setup()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("authProvider", string(cfg.AuthProvider)),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := container.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
