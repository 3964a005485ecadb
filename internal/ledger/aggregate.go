// Package ledger computes balances, reports, rankings and goal progress
// from rows already fetched from the store. Nothing here does I/O.
package ledger

import (
	"strconv"
	"strings"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

// Segments is the width of the goal progress bar.
const Segments = 10

const (
	filledGlyph = "█"
	emptyGlyph  = "░"
)

var hundred = decimal.NewFromInt(100)

// Balance is income minus expense. It may be negative.
func Balance(t core.Totals) core.Money {
	return t.Balance()
}

// Progress describes how far a balance is from a savings goal.
type Progress struct {
	Target    core.Money
	Balance   core.Money
	Percent   int
	Filled    int
	Empty     int
	Reached   bool
	Shortfall core.Money
}

// GoalProgress clamps balance/target to [0,100] percent and splits it into
// bar segments. The target must be positive.
func GoalProgress(balance, target core.Money) Progress {
	p := Progress{Target: target, Balance: balance}

	pct := decimal.Zero
	if target.Cents > 0 {
		pct = decimal.NewFromInt(balance.Cents).
			Mul(hundred).
			DivRound(decimal.NewFromInt(target.Cents), 16)
	}
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	p.Percent = int(pct.Round(0).IntPart())

	filled := decimal.NewFromInt(int64(p.Percent)).
		Mul(decimal.NewFromInt(Segments)).
		Div(hundred).
		Round(0).
		IntPart()
	p.Filled = int(filled)
	p.Empty = Segments - p.Filled

	if balance.Cents >= target.Cents {
		p.Reached = true
	} else {
		p.Shortfall = target.Sub(balance)
	}
	return p
}

// Bar renders the progress as "[███░░░░░░░] 30%".
func (p Progress) Bar() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.Repeat(filledGlyph, p.Filled))
	b.WriteString(strings.Repeat(emptyGlyph, p.Empty))
	b.WriteString("] ")
	b.WriteString(strconv.Itoa(p.Percent))
	b.WriteString("%")
	return b.String()
}

// ReportLine is one (category, kind) group of a monthly report.
type ReportLine struct {
	Category string
	Kind     core.Kind
	Total    core.Money
}

// Report is the per-category breakdown of one month.
type Report struct {
	Month core.YearMonth
	Lines []ReportLine
}

// MonthlyReport builds a report; an empty month yields core.ErrEmptyResult.
func MonthlyReport(month core.YearMonth, rows []core.CategoryKindSum) (Report, error) {
	if len(rows) == 0 {
		return Report{Month: month}, core.ErrEmptyResult
	}
	r := Report{Month: month, Lines: make([]ReportLine, 0, len(rows))}
	for _, row := range rows {
		r.Lines = append(r.Lines, ReportLine{Category: row.Category, Kind: row.Kind, Total: row.Sum})
	}
	return r, nil
}

// RankingEntry is one category with both sums and their net.
type RankingEntry struct {
	Position int
	Category string
	Count    int64
	Expense  core.Money
	Income   core.Money
	Net      core.Money
}

// Ranking keeps the store's order and numbers entries from 1.
func Ranking(stats []core.CategoryStat) ([]RankingEntry, error) {
	if len(stats) == 0 {
		return nil, core.ErrEmptyResult
	}
	out := make([]RankingEntry, 0, len(stats))
	for i, s := range stats {
		out = append(out, RankingEntry{
			Position: i + 1,
			Category: s.Category,
			Count:    s.Count,
			Expense:  s.ExpenseSum,
			Income:   s.IncomeSum,
			Net:      s.IncomeSum.Sub(s.ExpenseSum),
		})
	}
	return out, nil
}

// TopEntry is a numbered expense of a top-N list.
type TopEntry struct {
	Position int
	Movement core.Movement
}

// TopExpenses numbers the store's list from 1.
func TopExpenses(movements []core.Movement) ([]TopEntry, error) {
	if len(movements) == 0 {
		return nil, core.ErrEmptyResult
	}
	out := make([]TopEntry, 0, len(movements))
	for i, m := range movements {
		out = append(out, TopEntry{Position: i + 1, Movement: m})
	}
	return out, nil
}

// Summary is the income/expense/balance of one month.
type Summary struct {
	Month   core.YearMonth
	Income  core.Money
	Expense core.Money
	Balance core.Money
}

// MonthSummary never reports an empty result; a quiet month sums to zero.
func MonthSummary(month core.YearMonth, t core.Totals) Summary {
	return Summary{Month: month, Income: t.Income, Expense: t.Expense, Balance: t.Balance()}
}
