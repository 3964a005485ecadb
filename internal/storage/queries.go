package storage

import (
	"context"
	"database/sql"
	"errors"
)

const createMovimiento = `
INSERT INTO movimientos (user_id, kind, category, amount_cents, date)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type CreateMovimientoParams struct {
	UserID      int64
	Kind        string
	Category    string
	AmountCents int64
	Date        string
}

func (q *Queries) CreateMovimiento(ctx context.Context, arg CreateMovimientoParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createMovimiento,
		arg.UserID, arg.Kind, arg.Category, arg.AmountCents, arg.Date)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateMovimiento = `
UPDATE movimientos
SET category = ?, amount_cents = ?
WHERE id = ? AND user_id = ?
`

type UpdateMovimientoParams struct {
	Category    string
	AmountCents int64
	ID          int64
	UserID      int64
}

func (q *Queries) UpdateMovimiento(ctx context.Context, arg UpdateMovimientoParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateMovimiento,
		arg.Category, arg.AmountCents, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteMovimiento = `
DELETE FROM movimientos WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteMovimiento(ctx context.Context, id, userID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteMovimiento, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getMovimiento = `
SELECT id, user_id, kind, category, amount_cents, date
FROM movimientos
WHERE id = ? AND user_id = ?
`

func (q *Queries) GetMovimiento(ctx context.Context, id, userID int64) (Movimiento, error) {
	row := q.db.QueryRowContext(ctx, getMovimiento, id, userID)
	var m Movimiento
	err := row.Scan(&m.ID, &m.UserID, &m.Kind, &m.Category, &m.AmountCents, &m.Date)
	return m, err
}

const upsertMeta = `
INSERT INTO metas (user_id, target_cents) VALUES (?, ?)
ON CONFLICT(user_id) DO UPDATE SET target_cents = excluded.target_cents
`

func (q *Queries) UpsertMeta(ctx context.Context, userID, targetCents int64) error {
	_, err := q.db.ExecContext(ctx, upsertMeta, userID, targetCents)
	return err
}

const getMeta = `
SELECT target_cents FROM metas WHERE user_id = ?
`

func (q *Queries) GetMeta(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, getMeta, userID)
	var target int64
	err := row.Scan(&target)
	return target, err
}

const searchMovimientos = `
SELECT id, user_id, kind, category, amount_cents, date
FROM movimientos
WHERE user_id = ? AND finanzas_fold(category) LIKE ? ESCAPE '\'
ORDER BY date DESC, id DESC
LIMIT ?
`

func (q *Queries) SearchMovimientos(ctx context.Context, userID int64, pattern string, limit int64) ([]Movimiento, error) {
	return q.listMovimientos(ctx, searchMovimientos, userID, pattern, limit)
}

const listRecentMovimientos = `
SELECT id, user_id, kind, category, amount_cents, date
FROM movimientos
WHERE user_id = ?
ORDER BY date DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRecentMovimientos(ctx context.Context, userID, limit int64) ([]Movimiento, error) {
	return q.listMovimientos(ctx, listRecentMovimientos, userID, limit)
}

const listAllMovimientos = `
SELECT id, user_id, kind, category, amount_cents, date
FROM movimientos
WHERE user_id = ?
ORDER BY date ASC, id ASC
`

func (q *Queries) ListAllMovimientos(ctx context.Context, userID int64) ([]Movimiento, error) {
	return q.listMovimientos(ctx, listAllMovimientos, userID)
}

const topGastos = `
SELECT id, user_id, kind, category, amount_cents, date
FROM movimientos
WHERE user_id = ? AND kind = 'gasto' AND date >= ? AND date < ?
ORDER BY amount_cents DESC, id ASC
LIMIT ?
`

type TopGastosParams struct {
	UserID int64
	From   string
	To     string
	Limit  int64
}

func (q *Queries) TopGastos(ctx context.Context, arg TopGastosParams) ([]Movimiento, error) {
	return q.listMovimientos(ctx, topGastos, arg.UserID, arg.From, arg.To, arg.Limit)
}

func (q *Queries) listMovimientos(ctx context.Context, query string, args ...interface{}) ([]Movimiento, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Movimiento
	for rows.Next() {
		var m Movimiento
		if err := rows.Scan(&m.ID, &m.UserID, &m.Kind, &m.Category, &m.AmountCents, &m.Date); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const totalsByUser = `
SELECT
    COALESCE(SUM(CASE WHEN kind = 'ingreso' THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN kind = 'gasto' THEN amount_cents ELSE 0 END), 0)
FROM movimientos
WHERE user_id = ?
`

func (q *Queries) TotalsByUser(ctx context.Context, userID int64) (TotalsRow, error) {
	row := q.db.QueryRowContext(ctx, totalsByUser, userID)
	var t TotalsRow
	err := row.Scan(&t.IncomeCents, &t.ExpenseCents)
	return t, err
}

const totalsAll = `
SELECT
    COALESCE(SUM(CASE WHEN kind = 'ingreso' THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN kind = 'gasto' THEN amount_cents ELSE 0 END), 0)
FROM movimientos
`

func (q *Queries) TotalsAll(ctx context.Context) (TotalsRow, error) {
	row := q.db.QueryRowContext(ctx, totalsAll)
	var t TotalsRow
	err := row.Scan(&t.IncomeCents, &t.ExpenseCents)
	return t, err
}

const totalsByUserBetween = `
SELECT
    COALESCE(SUM(CASE WHEN kind = 'ingreso' THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN kind = 'gasto' THEN amount_cents ELSE 0 END), 0)
FROM movimientos
WHERE user_id = ? AND date >= ? AND date < ?
`

func (q *Queries) TotalsByUserBetween(ctx context.Context, userID int64, from, to string) (TotalsRow, error) {
	row := q.db.QueryRowContext(ctx, totalsByUserBetween, userID, from, to)
	var t TotalsRow
	err := row.Scan(&t.IncomeCents, &t.ExpenseCents)
	return t, err
}

const monthlyGroup = `
SELECT category, kind, SUM(amount_cents) AS total
FROM movimientos
WHERE user_id = ? AND date >= ? AND date < ?
GROUP BY category, kind
ORDER BY MIN(id)
`

func (q *Queries) MonthlyGroup(ctx context.Context, userID int64, from, to string) ([]MonthlyGroupRow, error) {
	rows, err := q.db.QueryContext(ctx, monthlyGroup, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthlyGroupRow
	for rows.Next() {
		var r MonthlyGroupRow
		if err := rows.Scan(&r.Category, &r.Kind, &r.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const categoryRanking = `
SELECT category,
       COALESCE(SUM(CASE WHEN kind = 'gasto' THEN amount_cents ELSE 0 END), 0) AS expense_cents,
       COALESCE(SUM(CASE WHEN kind = 'ingreso' THEN amount_cents ELSE 0 END), 0) AS income_cents,
       COUNT(*) AS times
FROM movimientos
WHERE user_id = ?1 AND (?2 = '' OR (date >= ?2 AND date < ?3))
GROUP BY category
ORDER BY times DESC
LIMIT ?4
`

type CategoryRankingParams struct {
	UserID int64
	// From and To bound the month; both empty means all time.
	From  string
	To    string
	Limit int64
}

func (q *Queries) CategoryRanking(ctx context.Context, arg CategoryRankingParams) ([]CategoryRankingRow, error) {
	rows, err := q.db.QueryContext(ctx, categoryRanking, arg.UserID, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRankingRow
	for rows.Next() {
		var r CategoryRankingRow
		if err := rows.Scan(&r.Category, &r.ExpenseCents, &r.IncomeCents, &r.Count); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// isNoRows keeps sql.ErrNoRows checks in one place.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
