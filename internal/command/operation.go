// Package command turns one line of chat text into a typed Operation.
package command

import "finanzas/internal/core"

// Operation is one of the variants below. Dispatch with a type switch.
type Operation interface {
	// Keyword is the command that produced the operation, e.g. "/gasto".
	Keyword() string
	// Mutates reports whether the operation writes to the ledger.
	Mutates() bool
}

type (
	RecordExpense struct {
		Category string
		Amount   core.Money
	}

	RecordIncome struct {
		Category string
		Amount   core.Money
	}

	Balance struct{}

	// Report always covers the current month.
	Report struct{}

	// Categories ranks categories; a nil Month means all time.
	Categories struct {
		Month *core.YearMonth
		Limit int
	}

	// TopExpenses lists a month's largest expenses; a nil Month means the current one.
	TopExpenses struct {
		Month *core.YearMonth
		Limit int
	}

	Recent struct {
		Limit int
	}

	// Summary totals one month; a nil Month means the current one.
	Summary struct {
		Month *core.YearMonth
	}

	Export struct{}

	Search struct {
		Text  string
		Limit int
	}

	Delete struct {
		ID int64
	}

	Edit struct {
		ID       int64
		Category string
		Amount   core.Money
	}

	SetGoal struct {
		Amount core.Money
	}

	Help struct{}
)

func (RecordExpense) Keyword() string { return "/gasto" }
func (RecordIncome) Keyword() string  { return "/ingreso" }
func (Balance) Keyword() string       { return "/balance" }
func (Report) Keyword() string        { return "/reporte" }
func (Categories) Keyword() string    { return "/categorias" }
func (TopExpenses) Keyword() string   { return "/topgastos" }
func (Recent) Keyword() string        { return "/ultimos" }
func (Summary) Keyword() string       { return "/resumen" }
func (Export) Keyword() string        { return "/exportar" }
func (Search) Keyword() string        { return "/buscar" }
func (Delete) Keyword() string        { return "/eliminar" }
func (Edit) Keyword() string          { return "/editar" }
func (SetGoal) Keyword() string       { return "/meta" }
func (Help) Keyword() string          { return "/ayuda" }

func (RecordExpense) Mutates() bool { return true }
func (RecordIncome) Mutates() bool  { return true }
func (Balance) Mutates() bool       { return false }
func (Report) Mutates() bool        { return false }
func (Categories) Mutates() bool    { return false }
func (TopExpenses) Mutates() bool   { return false }
func (Recent) Mutates() bool        { return false }
func (Summary) Mutates() bool       { return false }
func (Export) Mutates() bool        { return false }
func (Search) Mutates() bool        { return false }
func (Delete) Mutates() bool        { return true }
func (Edit) Mutates() bool          { return true }
func (SetGoal) Mutates() bool       { return true }
func (Help) Mutates() bool          { return false }
