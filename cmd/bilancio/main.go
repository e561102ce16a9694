package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	httpserver "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/theme"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bilancio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	// Events are best effort. Without a broker the worker still finds
	// pending records through its periodic scan.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled",
				log.FieldError, err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
		}
	}

	pal := theme.Resolve(cfg.ColorScheme)

	expenseSvc := services.NewExpenseService(repo, publisher)
	incomeSvc := services.NewIncomeService(repo, publisher)
	monthSvc := services.NewMonthService(repo, publisher)
	reportSvc := services.NewReportService(repo, pal)

	server := httpserver.NewServer(":"+cfg.Port, httpserver.Deps{
		Expenses: expenseSvc,
		Incomes:  incomeSvc,
		Months:   monthSvc,
		Metadata: repo,
		Reports:  reportSvc,
		Ready:    repo,
	}, httpserver.Options{
		Palette:      pal,
		CacheTTL:     cfg.CacheTTL,
		CacheMaxSize: cfg.CacheMaxSize,
		TrendWindow:  cfg.TrendWindow,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"db_path", cfg.SQLiteDBPath,
			"color_scheme", cfg.ColorScheme)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
