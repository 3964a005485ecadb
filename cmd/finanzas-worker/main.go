package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/sheets/memory"
	"finanzas/internal/worker"
)

const (
	seenEventsSize     = 4096
	seenEventsTTL      = time.Hour
	cacheSweepInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting finanzas-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger, nil)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	var mirror sheets.MovementMirror
	if cfg.MirrorEnabled() {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		mirror = memory.New()
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, events are kept in memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{Events: cfg.AMQPEventsQueue})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	seen := cache.NewLRUCache[string, struct{}](seenEventsSize, seenEventsTTL)
	caches := cache.NewManager()
	caches.Register(seen)

	mirrorWorker := worker.NewMirrorWorker(store, mirror, logger).WithDedupe(seen)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	go caches.Run(ctx, cacheSweepInterval)

	if err := mirrorWorker.Prepare(ctx); err != nil {
		// Not fatal: rows still append below whatever is there.
		logger.Error("Failed to prepare mirror", log.FieldError, err)
	}

	err = amqpClient.ConsumeLedgerEvents(ctx, cfg.WorkerConcurrency, mirrorWorker.HandleLedgerEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
