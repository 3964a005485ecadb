package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"finanzas/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the ledger store. Every failure it returns is a
// *core.PersistenceError.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; statements queue in database/sql instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record inserts a movement and returns its generated id.
func (r *SQLiteRepository) Record(ctx context.Context, m core.Movement) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("validate movement: %w", err)
	}
	kind, err := encodeKind(m.Kind)
	if err != nil {
		return 0, err
	}

	id, err := r.queries.CreateMovimiento(ctx, CreateMovimientoParams{
		UserID:      m.UserID,
		Kind:        kind,
		Category:    m.Category,
		AmountCents: m.Amount.Cents,
		Date:        m.Date.String(),
	})
	if err != nil {
		return 0, core.Persistence("insert movement", err)
	}

	slog.InfoContext(ctx, "Movement saved to SQLite",
		"id", id,
		"user_id", m.UserID,
		"kind", m.Kind,
		"amount_cents", m.Amount.Cents,
		"date", m.Date.String())

	return id, nil
}

// Edit changes category and amount of a movement owned by userID. It
// reports false when no such movement exists for that user.
func (r *SQLiteRepository) Edit(ctx context.Context, id, userID int64, category string, amount core.Money) (bool, error) {
	if err := core.ValidateCategory(category); err != nil {
		return false, err
	}
	if err := amount.Validate(); err != nil {
		return false, err
	}

	n, err := r.queries.UpdateMovimiento(ctx, UpdateMovimientoParams{
		Category:    category,
		AmountCents: amount.Cents,
		ID:          id,
		UserID:      userID,
	})
	if err != nil {
		return false, core.Persistence("update movement", err)
	}
	return n > 0, nil
}

// Delete removes a movement owned by userID.
func (r *SQLiteRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	n, err := r.queries.DeleteMovimiento(ctx, id, userID)
	if err != nil {
		return false, core.Persistence("delete movement", err)
	}
	return n > 0, nil
}

// Get returns a movement owned by userID.
func (r *SQLiteRepository) Get(ctx context.Context, id, userID int64) (core.Movement, error) {
	row, err := r.queries.GetMovimiento(ctx, id, userID)
	if isNoRows(err) {
		return core.Movement{}, core.ErrNotFound
	}
	if err != nil {
		return core.Movement{}, core.Persistence("get movement", err)
	}
	return toMovement(row)
}

// UpsertGoal inserts or replaces the user's single goal.
func (r *SQLiteRepository) UpsertGoal(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validate goal: %w", err)
	}
	if err := r.queries.UpsertMeta(ctx, g.UserID, g.Target.Cents); err != nil {
		return core.Persistence("upsert goal", err)
	}
	return nil
}

// Goal returns the user's goal, if set.
func (r *SQLiteRepository) Goal(ctx context.Context, userID int64) (core.Goal, bool, error) {
	target, err := r.queries.GetMeta(ctx, userID)
	if isNoRows(err) {
		return core.Goal{}, false, nil
	}
	if err != nil {
		return core.Goal{}, false, core.Persistence("get goal", err)
	}
	return core.Goal{UserID: userID, Target: core.Money{Cents: target}}, true, nil
}

// Search matches category case-insensitively, newest first.
func (r *SQLiteRepository) Search(ctx context.Context, userID int64, substring string, limit int) ([]core.Movement, error) {
	rows, err := r.queries.SearchMovimientos(ctx, userID, likePattern(fold(substring)), int64(limit))
	if err != nil {
		return nil, core.Persistence("search movements", err)
	}
	return toMovements(rows)
}

// ListRecent returns the newest movements of a user.
func (r *SQLiteRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]core.Movement, error) {
	rows, err := r.queries.ListRecentMovimientos(ctx, userID, int64(limit))
	if err != nil {
		return nil, core.Persistence("list recent movements", err)
	}
	return toMovements(rows)
}

// ListAll returns every movement of a user in ascending date order.
func (r *SQLiteRepository) ListAll(ctx context.Context, userID int64) ([]core.Movement, error) {
	rows, err := r.queries.ListAllMovimientos(ctx, userID)
	if err != nil {
		return nil, core.Persistence("list movements", err)
	}
	return toMovements(rows)
}

// Totals sums incomes and expenses of userID, or of every user when
// userID is nil.
func (r *SQLiteRepository) Totals(ctx context.Context, userID *int64) (core.Totals, error) {
	var (
		row TotalsRow
		err error
	)
	if userID == nil {
		row, err = r.queries.TotalsAll(ctx)
	} else {
		row, err = r.queries.TotalsByUser(ctx, *userID)
	}
	if err != nil {
		return core.Totals{}, core.Persistence("totals", err)
	}
	return toTotals(row), nil
}

// MonthTotals sums incomes and expenses of a user within one month.
func (r *SQLiteRepository) MonthTotals(ctx context.Context, userID int64, ym core.YearMonth) (core.Totals, error) {
	from, to := ym.Bounds()
	row, err := r.queries.TotalsByUserBetween(ctx, userID, from.String(), to.String())
	if err != nil {
		return core.Totals{}, core.Persistence("month totals", err)
	}
	return toTotals(row), nil
}

// MonthlyGroup sums a user's month by category and kind.
func (r *SQLiteRepository) MonthlyGroup(ctx context.Context, userID int64, ym core.YearMonth) ([]core.CategoryKindSum, error) {
	from, to := ym.Bounds()
	rows, err := r.queries.MonthlyGroup(ctx, userID, from.String(), to.String())
	if err != nil {
		return nil, core.Persistence("monthly group", err)
	}
	out := make([]core.CategoryKindSum, 0, len(rows))
	for _, row := range rows {
		kind, err := decodeKind(row.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, core.CategoryKindSum{
			Category: row.Category,
			Kind:     kind,
			Sum:      core.Money{Cents: row.TotalCents},
		})
	}
	return out, nil
}

// CategoryRanking groups a user's movements by category, most frequent
// first. Order among equal counts is whatever SQLite yields.
func (r *SQLiteRepository) CategoryRanking(ctx context.Context, userID int64, ym *core.YearMonth, limit int) ([]core.CategoryStat, error) {
	params := CategoryRankingParams{UserID: userID, Limit: int64(limit)}
	if ym != nil {
		from, to := ym.Bounds()
		params.From, params.To = from.String(), to.String()
	}
	rows, err := r.queries.CategoryRanking(ctx, params)
	if err != nil {
		return nil, core.Persistence("category ranking", err)
	}
	out := make([]core.CategoryStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryStat{
			Category:   row.Category,
			ExpenseSum: core.Money{Cents: row.ExpenseCents},
			IncomeSum:  core.Money{Cents: row.IncomeCents},
			Count:      row.Count,
		})
	}
	return out, nil
}

// TopExpenses returns a month's largest expenses; equal amounts keep
// insertion order.
func (r *SQLiteRepository) TopExpenses(ctx context.Context, userID int64, ym core.YearMonth, limit int) ([]core.Movement, error) {
	from, to := ym.Bounds()
	rows, err := r.queries.TopGastos(ctx, TopGastosParams{
		UserID: userID,
		From:   from.String(),
		To:     to.String(),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, core.Persistence("top expenses", err)
	}
	return toMovements(rows)
}

func encodeKind(k core.Kind) (string, error) {
	switch k {
	case core.Expense:
		return kindExpense, nil
	case core.Income:
		return kindIncome, nil
	default:
		return "", core.ErrInvalidKind
	}
}

func decodeKind(s string) (core.Kind, error) {
	k, err := ParseKindLabel(s)
	if err != nil {
		return 0, core.Persistence("decode kind", err)
	}
	return k, nil
}

// KindLabel is the storage spelling of k, also used by the CSV export
// and the sheet mirror.
func KindLabel(k core.Kind) string {
	s, err := encodeKind(k)
	if err != nil {
		return ""
	}
	return s
}

// ParseKindLabel is the inverse of KindLabel.
func ParseKindLabel(s string) (core.Kind, error) {
	switch s {
	case kindExpense:
		return core.Expense, nil
	case kindIncome:
		return core.Income, nil
	default:
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidKind, s)
	}
}

func toMovement(row Movimiento) (core.Movement, error) {
	kind, err := decodeKind(row.Kind)
	if err != nil {
		return core.Movement{}, err
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Movement{}, core.Persistence("decode date", err)
	}
	return core.Movement{
		ID:       row.ID,
		UserID:   row.UserID,
		Kind:     kind,
		Category: row.Category,
		Amount:   core.Money{Cents: row.AmountCents},
		Date:     date,
	}, nil
}

func toMovements(rows []Movimiento) ([]core.Movement, error) {
	out := make([]core.Movement, 0, len(rows))
	for _, row := range rows {
		m, err := toMovement(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func toTotals(row TotalsRow) core.Totals {
	return core.Totals{
		Income:  core.Money{Cents: row.IncomeCents},
		Expense: core.Money{Cents: row.ExpenseCents},
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a literal needle into a LIKE pattern.
func likePattern(substring string) string {
	return "%" + likeEscaper.Replace(substring) + "%"
}
