package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the raw statements of the ledger. Rows are returned in
// their storage shape; SQLiteRepository maps them to core types.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const (
	kindExpense = "gasto"
	kindIncome  = "ingreso"
)

type Movimiento struct {
	ID          int64
	UserID      int64
	Kind        string
	Category    string
	AmountCents int64
	Date        string
}

type TotalsRow struct {
	IncomeCents  int64
	ExpenseCents int64
}

type MonthlyGroupRow struct {
	Category   string
	Kind       string
	TotalCents int64
}

type CategoryRankingRow struct {
	Category     string
	ExpenseCents int64
	IncomeCents  int64
	Count        int64
}
