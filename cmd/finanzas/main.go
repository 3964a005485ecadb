package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentBot)
	logger.Info("Starting finanzas bot", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateBot)
	loc, _ := cfg.Location()

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
		Inbound:  cfg.AMQPInboundQueue,
		Outbound: cfg.AMQPOutboundQueue,
		Events:   cfg.AMQPEventsQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	svc := services.NewLedgerService(store, amqp.NewReplySender(client, cfg.BotID()), client, services.Options{
		Location: loc,
		Timeout:  cfg.CommandTimeout,
		TempDir:  cfg.ExportDir,
		Logger:   logger,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeChatMessages(gctx, cfg.WorkerConcurrency, func(ctx context.Context, msg *amqp.ChatMessage) error {
			err := svc.Handle(ctx, services.Message{UserID: msg.UserID, ChatID: msg.ChatID, Text: msg.Text})
			var de *core.DeliveryError
			if errors.As(err, &de) {
				// Redelivering would run the command a second time.
				return nil
			}
			return err
		})
	})

	logger.Info("Bot ready",
		"bot_id", cfg.BotID(),
		"queue", cfg.AMQPInboundQueue,
		"concurrency", cfg.WorkerConcurrency)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
