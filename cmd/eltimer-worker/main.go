// Command eltimer-worker archives state backups. It consumes save
// notifications from RabbitMQ and writes a dated snapshot per change,
// with a periodic safety backup in case messages were missed.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"eltimer/internal/config"
	"eltimer/internal/log"
	"eltimer/internal/notify"
	"eltimer/internal/storage"
	"eltimer/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(logLevel())
	log.SetDefault(logger)
	logger.Info("starting backup worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("backup worker requires AMQP_URL")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("opening local database failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer repo.Close()

	notifier, err := notify.NewNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("connecting to message broker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer notifier.Close()

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = "./data/backups"
	}
	w := worker.NewBackupWorker(repo, backupDir, 20, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := notifier.Consume(ctx, w.HandleStateSaved); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("message consumption failed", log.FieldError, err.Error())
			}
			cancel()
		}
	}()

	// Daily safety backup of the offline scope in case notifications
	// were missed.
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.ArchiveNow(ctx, "local"); err != nil {
					logger.Error("safety backup failed", log.FieldError, err.Error())
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()
	logger.Info("backup worker stopped")
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
