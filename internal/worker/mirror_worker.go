package worker

import (
	"context"
	"fmt"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

// Lister reads a user's full history for a backfill.
type Lister interface {
	ListAll(ctx context.Context, userID int64) ([]core.Movement, error)
}

// MirrorWorker copies ledger events to the movement mirror.
type MirrorWorker struct {
	store  Lister
	mirror sheets.MovementMirror
	seen   cache.Cache[string, struct{}]
	now    func() time.Time
	logger *log.Logger
}

func NewMirrorWorker(store Lister, mirror sheets.MovementMirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &MirrorWorker{
		store:  store,
		mirror: mirror,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// WithDedupe remembers mirrored events in seen so a redelivery of an
// event that was appended but never acked is skipped.
func (w *MirrorWorker) WithDedupe(seen cache.Cache[string, struct{}]) *MirrorWorker {
	w.seen = seen
	return w
}

func eventKey(ev core.LedgerEvent) string {
	return fmt.Sprintf("%s:%d:%d", ev.Action, ev.Movement.ID, ev.At.UnixNano())
}

// Prepare writes the mirror's header row, if it has one.
func (w *MirrorWorker) Prepare(ctx context.Context) error {
	hw, ok := w.mirror.(sheets.HeaderWriter)
	if !ok {
		return nil
	}
	if err := hw.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("ensure mirror header: %w", err)
	}
	return nil
}

// HandleLedgerEvent appends one event. A returned error makes the broker
// redeliver it.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, ev core.LedgerEvent) error {
	start := time.Now()
	fields := log.NewFields().
		WithOperation(log.OpMirror).
		WithMovement(ev.Movement.ID, ev.Movement.Kind.String(), ev.Movement.Category, ev.Movement.Amount.Cents)

	var key string
	if w.seen != nil {
		key = eventKey(ev)
		if _, ok := w.seen.Get(key); ok {
			w.logger.WithFields(fields).DebugContext(ctx, "Skipping already mirrored event", log.FieldAction, ev.Action)
			return nil
		}
	}

	ref, err := w.mirror.AppendEvent(ctx, ev)
	if err != nil {
		w.logger.WithFields(fields.WithError(err)).ErrorContext(ctx, "Failed to mirror ledger event",
			log.FieldAction, ev.Action)
		return fmt.Errorf("append to mirror: %w", err)
	}
	if w.seen != nil {
		w.seen.Set(key, struct{}{})
	}

	w.logger.WithFields(fields.WithOutcome(time.Since(start).Milliseconds(), true)).InfoContext(ctx, "Mirrored ledger event",
		log.FieldAction, ev.Action,
		log.FieldSheetsRef, ref)
	return nil
}

// Backfill mirrors every stored movement of userID as a recorded event,
// oldest first. It stops at the first failure and reports how many rows
// were written.
func (w *MirrorWorker) Backfill(ctx context.Context, userID int64) (int, error) {
	movements, err := w.store.ListAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list movements: %w", err)
	}
	if len(movements) == 0 {
		w.logger.InfoContext(ctx, "Nothing to backfill", log.FieldUserID, userID)
		return 0, nil
	}

	at := w.now()
	written := 0
	for _, m := range movements {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ev := core.LedgerEvent{Action: core.ActionRecorded, Movement: m, At: at}
		if err := w.HandleLedgerEvent(ctx, ev); err != nil {
			return written, err
		}
		written++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		log.FieldUserID, userID,
		"total", len(movements),
		"written", written)
	return written, nil
}
