package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tourist-safety/internal/config"
	"tourist-safety/internal/logger"
	"tourist-safety/internal/server"
)

const serviceName = "tourist-safety"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if !cfg.EnvFileLoaded {
		zapLogger.Info("no .env file found, using process environment")
	}

	srv, err := server.New(cfg, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	zapLogger.Info("listening",
		zap.String("addr", actualAddr),
		zap.String("routing", cfg.RoutingBaseURL),
		zap.Bool("kafka", len(cfg.KafkaBrokers) > 0))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	zapLogger.Info("starting graceful shutdown", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	zapLogger.Info("server stopped")
	return nil
}
