package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finanzas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustRecord(t *testing.T, repo *SQLiteRepository, user int64, kind core.Kind, category string, units int64, date core.Date) int64 {
	t.Helper()
	id, err := repo.Record(context.Background(), core.Movement{
		UserID:   user,
		Kind:     kind,
		Category: category,
		Amount:   core.FromUnits(units),
		Date:     date,
	})
	if err != nil {
		t.Fatalf("record %s: %v", category, err)
	}
	return id
}

func TestRecordAssignsIncreasingIDs(t *testing.T) {
	repo := newTestRepo(t)
	a := mustRecord(t, repo, 1, core.Expense, "comida", 100, core.NewDate(2025, 1, 10))
	b := mustRecord(t, repo, 1, core.Income, "sueldo", 200, core.NewDate(2025, 1, 10))
	if b <= a {
		t.Fatalf("expected increasing ids, got %d then %d", a, b)
	}

	// Ids are never reused after a delete.
	if _, err := repo.Delete(context.Background(), b, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c := mustRecord(t, repo, 1, core.Expense, "taxi", 5, core.NewDate(2025, 1, 11))
	if c <= b {
		t.Fatalf("expected id after %d, got %d", b, c)
	}
}

func TestRecordRejectsInvalidMovement(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Record(context.Background(), core.Movement{
		UserID: 1, Kind: core.Expense, Category: "x", Amount: core.Money{}, Date: core.NewDate(2025, 1, 1),
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestEditAndDeleteRequireOwnership(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	id := mustRecord(t, repo, 1, core.Expense, "comida", 50000, core.NewDate(2025, 1, 10))

	changed, err := repo.Edit(ctx, id, 2, "transporte", core.FromUnits(20000))
	if err != nil || changed {
		t.Fatalf("expected no change for another user, got changed=%v err=%v", changed, err)
	}
	m, err := repo.Get(ctx, id, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Category != "comida" || m.Amount != core.FromUnits(50000) {
		t.Fatalf("row changed by foreign edit: %+v", m)
	}

	changed, err = repo.Delete(ctx, id, 2)
	if err != nil || changed {
		t.Fatalf("expected no delete for another user, got changed=%v err=%v", changed, err)
	}

	changed, err = repo.Edit(ctx, id, 1, "transporte", core.FromUnits(20000))
	if err != nil || !changed {
		t.Fatalf("expected owner edit to succeed, got changed=%v err=%v", changed, err)
	}
	m, _ = repo.Get(ctx, id, 1)
	if m.Category != "transporte" || m.Amount != core.FromUnits(20000) || m.Kind != core.Expense {
		t.Fatalf("unexpected row after edit: %+v", m)
	}

	changed, err = repo.Delete(ctx, id, 1)
	if err != nil || !changed {
		t.Fatalf("expected owner delete to succeed, got changed=%v err=%v", changed, err)
	}
	if _, err := repo.Get(ctx, id, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpsertGoalReplaces(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, ok, err := repo.Goal(ctx, 1); err != nil || ok {
		t.Fatalf("expected no goal, got ok=%v err=%v", ok, err)
	}
	for _, units := range []int64{100000, 250000} {
		if err := repo.UpsertGoal(ctx, core.Goal{UserID: 1, Target: core.FromUnits(units)}); err != nil {
			t.Fatalf("upsert goal: %v", err)
		}
	}
	g, ok, err := repo.Goal(ctx, 1)
	if err != nil || !ok || g.Target != core.FromUnits(250000) {
		t.Fatalf("expected replaced goal, got %+v ok=%v err=%v", g, ok, err)
	}

	var count int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM metas WHERE user_id = 1`).Scan(&count); err != nil {
		t.Fatalf("count metas: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one goal row, got %d", count)
	}
}

func TestTotalsScopes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRecord(t, repo, 1, core.Expense, "comida", 50000, core.NewDate(2025, 1, 10))
	mustRecord(t, repo, 1, core.Income, "sueldo", 80000, core.NewDate(2025, 1, 15))
	mustRecord(t, repo, 2, core.Income, "sueldo", 1000, core.NewDate(2025, 1, 15))

	user := int64(1)
	tot, err := repo.Totals(ctx, &user)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if tot.Income != core.FromUnits(80000) || tot.Expense != core.FromUnits(50000) {
		t.Fatalf("unexpected user totals: %+v", tot)
	}

	all, err := repo.Totals(ctx, nil)
	if err != nil {
		t.Fatalf("global totals: %v", err)
	}
	if all.Income != core.FromUnits(81000) {
		t.Fatalf("unexpected global income: %+v", all)
	}

	empty := int64(99)
	none, err := repo.Totals(ctx, &empty)
	if err != nil || none.Income.Cents != 0 || none.Expense.Cents != 0 {
		t.Fatalf("expected zero totals, got %+v err=%v", none, err)
	}
}

func TestSearchIsCaseInsensitiveAndLiteral(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRecord(t, repo, 1, core.Expense, "Comida rapida", 10, core.NewDate(2025, 1, 1))
	mustRecord(t, repo, 1, core.Expense, "comida casa", 20, core.NewDate(2025, 1, 3))
	mustRecord(t, repo, 1, core.Expense, "100% cafe", 30, core.NewDate(2025, 1, 2))
	mustRecord(t, repo, 2, core.Expense, "comida", 40, core.NewDate(2025, 1, 4))

	got, err := repo.Search(ctx, 1, "COMIDA", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].Category != "comida casa" || got[1].Category != "Comida rapida" {
		t.Fatalf("unexpected results: %+v", got)
	}

	got, _ = repo.Search(ctx, 1, "%", 10)
	if len(got) != 1 || got[0].Category != "100% cafe" {
		t.Fatalf("expected literal percent match, got %+v", got)
	}

	got, _ = repo.Search(ctx, 1, "comida", 1)
	if len(got) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(got))
	}
}

func TestSearchFoldsNonASCIICase(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRecord(t, repo, 1, core.Expense, "café con leche", 10, core.NewDate(2025, 1, 1))
	mustRecord(t, repo, 1, core.Expense, "PEÑA", 20, core.NewDate(2025, 1, 2))
	mustRecord(t, repo, 1, core.Expense, "cafe", 30, core.NewDate(2025, 1, 3))

	tests := []struct {
		needle string
		want   []string
	}{
		{"CAFÉ", []string{"café con leche"}},
		{"Café", []string{"café con leche"}},
		{"peña", []string{"PEÑA"}},
		{"ÑA", []string{"PEÑA"}},
		{"caf", []string{"cafe", "café con leche"}},
	}
	for _, tt := range tests {
		t.Run(tt.needle, func(t *testing.T) {
			got, err := repo.Search(ctx, 1, tt.needle, 10)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i, m := range got {
				if m.Category != tt.want[i] {
					t.Fatalf("result %d: expected %q, got %q", i, tt.want[i], m.Category)
				}
			}
		})
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"CAFÉ":   "café",
		"Ñandú":  "ñandú",
		"comida": "comida",
		"50%_":   "50%_",
	}
	for in, want := range cases {
		if got := fold(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestListRecentAndAllOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRecord(t, repo, 1, core.Expense, "b", 1, core.NewDate(2025, 2, 1))
	mustRecord(t, repo, 1, core.Expense, "a", 1, core.NewDate(2025, 1, 1))
	mustRecord(t, repo, 1, core.Expense, "c", 1, core.NewDate(2025, 3, 1))

	recent, err := repo.ListRecent(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Category != "c" || recent[1].Category != "b" {
		t.Fatalf("unexpected recent: %+v", recent)
	}

	all, err := repo.ListAll(ctx, 1)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].Category != "a" || all[2].Category != "c" {
		t.Fatalf("unexpected ascending order: %+v", all)
	}
}

func TestMonthlyGroupFiltersMonth(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRecord(t, repo, 1, core.Expense, "comida", 100, core.NewDate(2025, 1, 10))
	mustRecord(t, repo, 1, core.Expense, "comida", 50, core.NewDate(2025, 1, 31))
	mustRecord(t, repo, 1, core.Income, "comida", 70, core.NewDate(2025, 1, 2))
	mustRecord(t, repo, 1, core.Expense, "comida", 999, core.NewDate(2025, 2, 1))

	rows, err := repo.MonthlyGroup(ctx, 1, core.YearMonth{Year: 2025, Month: 1})
	if err != nil {
		t.Fatalf("monthly group: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %+v", rows)
	}
	sums := map[core.Kind]core.Money{}
	for _, r := range rows {
		sums[r.Kind] = r.Sum
	}
	if sums[core.Expense] != core.FromUnits(150) || sums[core.Income] != core.FromUnits(70) {
		t.Fatalf("unexpected sums: %+v", sums)
	}
}

func TestCategoryRanking(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRecord(t, repo, 1, core.Expense, "comida", 10, core.NewDate(2025, 1, 1))
	mustRecord(t, repo, 1, core.Expense, "comida", 20, core.NewDate(2025, 1, 2))
	mustRecord(t, repo, 1, core.Income, "comida", 5, core.NewDate(2025, 1, 3))
	mustRecord(t, repo, 1, core.Expense, "taxi", 7, core.NewDate(2025, 2, 3))
	mustRecord(t, repo, 2, core.Expense, "taxi", 7, core.NewDate(2025, 1, 3))

	all, err := repo.CategoryRanking(ctx, 1, nil, 10)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(all) != 2 || all[0].Category != "comida" || all[0].Count != 3 {
		t.Fatalf("unexpected ranking: %+v", all)
	}
	if all[0].ExpenseSum != core.FromUnits(30) || all[0].IncomeSum != core.FromUnits(5) {
		t.Fatalf("unexpected sums: %+v", all[0])
	}

	feb := core.YearMonth{Year: 2025, Month: 2}
	month, err := repo.CategoryRanking(ctx, 1, &feb, 10)
	if err != nil {
		t.Fatalf("month ranking: %v", err)
	}
	if len(month) != 1 || month[0].Category != "taxi" || month[0].Count != 1 {
		t.Fatalf("expected only the user's February taxi, got %+v", month)
	}

	mar := core.YearMonth{Year: 2025, Month: 3}
	none, err := repo.CategoryRanking(ctx, 1, &mar, 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty ranking, got %+v err=%v", none, err)
	}
}

func TestTopExpensesOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	first := mustRecord(t, repo, 1, core.Expense, "a", 100, core.NewDate(2025, 1, 5))
	mustRecord(t, repo, 1, core.Expense, "b", 300, core.NewDate(2025, 1, 6))
	second := mustRecord(t, repo, 1, core.Expense, "c", 100, core.NewDate(2025, 1, 1))
	mustRecord(t, repo, 1, core.Income, "d", 1000, core.NewDate(2025, 1, 6))
	mustRecord(t, repo, 1, core.Expense, "e", 5000, core.NewDate(2025, 2, 6))

	top, err := repo.TopExpenses(ctx, 1, core.YearMonth{Year: 2025, Month: 1}, 5)
	if err != nil {
		t.Fatalf("top expenses: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 expenses, got %+v", top)
	}
	if top[0].Category != "b" || top[1].ID != first || top[2].ID != second {
		t.Fatalf("unexpected order: %+v", top)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Amount.Cents > top[i-1].Amount.Cents {
			t.Fatalf("not sorted by amount: %+v", top)
		}
	}

	capped, _ := repo.TopExpenses(ctx, 1, core.YearMonth{Year: 2025, Month: 1}, 1)
	if len(capped) != 1 {
		t.Fatalf("expected limit 1, got %d", len(capped))
	}
}

func TestClosedStoreReturnsPersistenceError(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()

	_, err := repo.ListAll(context.Background(), 1)
	if !core.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"comida": "%comida%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`c\d`:    `%c\\d%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
