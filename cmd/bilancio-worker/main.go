package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	"bilancio/internal/export"
	"bilancio/internal/log"
	"bilancio/internal/storage"
	"bilancio/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bilancio-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.BackupSpreadsheetID == "" {
		return errors.New("BACKUP_SPREADSHEET_ID is required for the backup worker")
	}

	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	sheets, err := export.NewSheetsClient(ctx, cfg.BackupSpreadsheetID, cfg.BackupSheetName)
	if err != nil {
		return fmt.Errorf("init sheets backup: %w", err)
	}

	// The worker also runs without a broker, draining pending records
	// on its interval alone.
	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, running on periodic scans only",
				log.FieldError, err)
		} else {
			consumer = client
			defer client.Close()
		}
	}

	w := worker.NewBackupWorker(repo, sheets, consumer, cfg.SyncBatchSize, cfg.SyncInterval)

	logger.Info("Backup worker starting",
		"spreadsheet_id", cfg.BackupSpreadsheetID,
		"sheet_name", cfg.BackupSheetName,
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval.String())

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker: %w", err)
	}
	logger.Info("Backup worker stopped")
	return nil
}
