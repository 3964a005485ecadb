package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/sheets/memory"
	"finanzas/internal/storage"
	"finanzas/internal/worker"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
)

// Globals are shared by every command.
type Globals struct {
	UserID   int64  `help:"User the commands run as." default:"1" env:"FINANZAS_USER_ID"`
	ChatID   int64  `help:"Chat replies are addressed to. Defaults to the user id." env:"FINANZAS_CHAT_ID"`
	DB       string `help:"SQLite database path." env:"SQLITE_DB_PATH" default:"./data/finanzas.db" type:"path"`
	OutDir   string `help:"Directory exported documents are saved to." default:"." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL" default:"warn"`
}

func (g *Globals) chat() int64 {
	if g.ChatID != 0 {
		return g.ChatID
	}
	return g.UserID
}

func (g *Globals) logger() *log.Logger {
	return cli.SetupLogger(g.LogLevel, log.ComponentConsole)
}

// localService wires a LedgerService over the local database that prints
// replies to out. events may be nil.
func (g *Globals) localService(store services.Store, out io.Writer, events services.EventPublisher, logger *log.Logger) (*services.LedgerService, error) {
	cfg := config.Load()
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return services.NewLedgerService(store, cli.NewConsoleSender(out, g.OutDir), events, services.Options{
		Location: loc,
		Timeout:  cfg.CommandTimeout,
		TempDir:  cfg.ExportDir,
		Logger:   logger,
	}), nil
}

func openStore(path string) (*storage.SQLiteRepository, error) {
	store, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return store, nil
}

func connectBroker(cfg *config.Config, queues amqp.Queues) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, errors.New("AMQP_URL is not set")
	}
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, queues)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type ExecCmd struct {
	Line    []string `arg:"" help:"Command line, e.g. /gasto comida 100."`
	Publish bool     `help:"Announce ledger changes on the events queue."`
}

func (cmd *ExecCmd) Run(ctx *kong.Context, globals *Globals) error {
	logger := globals.logger()
	store, err := openStore(globals.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	var events services.EventPublisher
	if cmd.Publish {
		cfg := config.Load()
		client, err := connectBroker(cfg, amqp.Queues{Events: cfg.AMQPEventsQueue})
		if err != nil {
			return err
		}
		defer client.Close()
		events = client
	}

	svc, err := globals.localService(store, ctx.Stdout, events, logger)
	if err != nil {
		return err
	}
	return svc.Handle(context.Background(), services.Message{
		UserID: globals.UserID,
		ChatID: globals.chat(),
		Text:   strings.Join(cmd.Line, " "),
	})
}

type ShellCmd struct{}

func (cmd *ShellCmd) Run(ctx *kong.Context, globals *Globals) error {
	logger := globals.logger()
	store, err := openStore(globals.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := globals.localService(store, ctx.Stdout, nil, logger)
	if err != nil {
		return err
	}

	sigCtx, stop := signalContext()
	defer stop()
	return runShell(sigCtx, svc, os.Stdin, ctx.Stdout, globals.UserID, globals.chat())
}

func runShell(ctx context.Context, svc *services.LedgerService, in io.Reader, out io.Writer, userID, chatID int64) error {
	fmt.Fprintln(out, "finanzas shell. /ayuda lists the commands, Ctrl-D exits.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := svc.Handle(ctx, services.Message{UserID: userID, ChatID: chatID, Text: line}); err != nil {
			return err
		}
	}
}

type SendCmd struct {
	Line []string `arg:"" help:"Command line to queue for the bot."`
}

func (cmd *SendCmd) Run(ctx *kong.Context, globals *Globals) error {
	cfg := config.Load()
	client, err := connectBroker(cfg, amqp.Queues{Inbound: cfg.AMQPInboundQueue})
	if err != nil {
		return err
	}
	defer client.Close()

	msg := amqp.NewChatMessage(globals.UserID, globals.chat(), strings.Join(cmd.Line, " "))
	if err := client.PublishChatMessage(context.Background(), msg); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "queued on %s\n", cfg.AMQPInboundQueue)
	return nil
}

type RepliesCmd struct{}

func (cmd *RepliesCmd) Run(ctx *kong.Context, globals *Globals) error {
	cfg := config.Load()
	client, err := connectBroker(cfg, amqp.Queues{Outbound: cfg.AMQPOutboundQueue})
	if err != nil {
		return err
	}
	defer client.Close()

	sigCtx, stop := signalContext()
	defer stop()

	err = client.ConsumeReplies(sigCtx, func(_ context.Context, reply *amqp.ReplyMessage) error {
		return printReply(ctx.Stdout, globals.OutDir, reply)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printReply(out io.Writer, outDir string, reply *amqp.ReplyMessage) error {
	if reply.Document == nil {
		_, err := fmt.Fprintf(out, "[%d] %s\n", reply.ChatID, reply.Text)
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	dest := filepath.Join(outDir, filepath.Base(reply.Document.FileName))
	if err := os.WriteFile(dest, reply.Document.Content, 0600); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "[%d] %s (%s, %s)\n", reply.ChatID, reply.Document.Caption, dest,
		humanize.Bytes(uint64(len(reply.Document.Content))))
	return err
}

type BackfillCmd struct {
	DryRun bool `help:"Mirror into memory instead of Google Sheets."`
}

func (cmd *BackfillCmd) Run(ctx *kong.Context, globals *Globals) error {
	logger := globals.logger()
	store, err := openStore(globals.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := config.Load()
	sigCtx, stop := signalContext()
	defer stop()

	var mirror sheets.MovementMirror
	if cmd.DryRun || !cfg.MirrorEnabled() {
		mirror = memory.New()
	} else {
		client, err := gsheet.New(sigCtx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return err
		}
		mirror = client
	}

	w := worker.NewMirrorWorker(store, mirror, logger)
	if err := w.Prepare(sigCtx); err != nil {
		return err
	}
	n, err := w.Backfill(sigCtx, globals.UserID)
	if err != nil {
		return fmt.Errorf("backfill stopped after %d rows: %w", n, err)
	}
	fmt.Fprintf(ctx.Stdout, "%s movements mirrored\n", humanize.Comma(int64(n)))
	return nil
}

type Commands struct {
	Exec     ExecCmd     `cmd:"" help:"Run one command line against the local database."`
	Shell    ShellCmd    `cmd:"" help:"Read command lines from stdin and run them locally."`
	Send     SendCmd     `cmd:"" help:"Queue a command line for the bot over AMQP."`
	Replies  RepliesCmd  `cmd:"" help:"Print replies the bot publishes on the outbound queue."`
	Backfill BackfillCmd `cmd:"" help:"Mirror every stored movement of the user to the sheet."`
}
