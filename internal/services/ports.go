package services

import (
	"context"

	"finanzas/internal/core"
	"finanzas/internal/format"
)

// Store is the ledger store as seen by the service.
type Store interface {
	Record(ctx context.Context, m core.Movement) (int64, error)
	Edit(ctx context.Context, id, userID int64, category string, amount core.Money) (bool, error)
	Delete(ctx context.Context, id, userID int64) (bool, error)
	Get(ctx context.Context, id, userID int64) (core.Movement, error)
	UpsertGoal(ctx context.Context, g core.Goal) error
	Goal(ctx context.Context, userID int64) (core.Goal, bool, error)
	Search(ctx context.Context, userID int64, substring string, limit int) ([]core.Movement, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]core.Movement, error)
	ListAll(ctx context.Context, userID int64) ([]core.Movement, error)
	Totals(ctx context.Context, userID *int64) (core.Totals, error)
	MonthTotals(ctx context.Context, userID int64, ym core.YearMonth) (core.Totals, error)
	MonthlyGroup(ctx context.Context, userID int64, ym core.YearMonth) ([]core.CategoryKindSum, error)
	CategoryRanking(ctx context.Context, userID int64, ym *core.YearMonth, limit int) ([]core.CategoryStat, error)
	TopExpenses(ctx context.Context, userID int64, ym core.YearMonth, limit int) ([]core.Movement, error)
}

// Sender delivers replies to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, reply format.Reply) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// EventPublisher announces ledger changes to the mirror.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

// Message is one inbound chat line.
type Message struct {
	UserID int64
	ChatID int64
	Text   string
}
