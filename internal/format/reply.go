package format

import (
	"fmt"
	"strings"
	"time"

	"finanzas/internal/command"
	"finanzas/internal/core"
	"finanzas/internal/ledger"
)

const (
	dateLayout  = "02/01/2006"
	stampLayout = "02/01/2006 15:04"
)

// Reply is one outgoing chat message.
type Reply struct {
	Text string
	Mode Mode
}

func plain(text string) Reply {
	return Reply{Text: text, Mode: Plain}
}

// strict escapes the whole text, markup included, for MarkdownV2.
func strict(text string) Reply {
	return Reply{Text: Escape(MarkdownV2, text), Mode: MarkdownV2}
}

func kindEmoji(k core.Kind) string {
	if k == core.Expense {
		return "💸"
	}
	return "💵"
}

func kindWord(k core.Kind) string {
	if k == core.Expense {
		return "gasto"
	}
	return "ingreso"
}

// RecordAck confirms a new movement together with the user's balance.
func RecordAck(m core.Movement, at time.Time, balance core.Money) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s registrado*\n", kindEmoji(m.Kind), strings.ToUpper(kindWord(m.Kind)))
	fmt.Fprintf(&b, "📅 %s\n", at.Format(stampLayout))
	fmt.Fprintf(&b, "📂 Categoría: %s\n", boldMarkdown(m.Category))
	fmt.Fprintf(&b, "💲 Monto: *%s*\n", Currency(m.Amount))
	fmt.Fprintf(&b, "🆔 Id: *%d*\n\n", m.ID)
	fmt.Fprintf(&b, "📊 Balance actual: *%s*", Currency(balance))
	return Reply{Text: b.String(), Mode: Markdown}
}

// RecordedWithoutBalance is sent when the insert worked but the totals did not.
func RecordedWithoutBalance() Reply {
	return plain("✅ Registrado, pero no pude calcular el balance.")
}

// Balance renders totals and, when a goal exists, its progress bar.
func Balance(t core.Totals, progress *ledger.Progress) Reply {
	var b strings.Builder
	b.WriteString("📊 Balance actual:\n")
	fmt.Fprintf(&b, "📥 Ingresos: %s\n", Currency(t.Income))
	fmt.Fprintf(&b, "📤 Gastos: %s\n", Currency(t.Expense))
	fmt.Fprintf(&b, "💰 Balance: %s", Currency(t.Balance()))

	if progress == nil {
		b.WriteString("\n⚠️ No has configurado una meta. Usa /meta <monto>")
		return plain(b.String())
	}

	fmt.Fprintf(&b, "\n🎯 Meta: %s\n📈 Progreso: %s", Currency(progress.Target), progress.Bar())
	if progress.Reached {
		b.WriteString("\n🏆 ¡Has alcanzado tu meta! 🎉")
	} else {
		fmt.Fprintf(&b, "\n💡 Te faltan %s para llegar a la meta.", Currency(progress.Shortfall))
	}
	return plain(b.String())
}

// Report renders the current month's per-category sums.
func Report(r ledger.Report) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Reporte de %s\n\n", r.Month)
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%s %s: %s\n", kindEmoji(line.Kind), line.Category, Currency(line.Total))
	}
	return plain(b.String())
}

func EmptyReport() Reply {
	return plain("No hay movimientos este mes.")
}

// Categories renders a ranking, either for one month or all time.
func Categories(month *core.YearMonth, entries []ledger.RankingEntry) Reply {
	var b strings.Builder
	if month != nil {
		fmt.Fprintf(&b, "📂 Categorías — %s\n\n", month)
	} else {
		b.WriteString("📂 Categorías (totales)\n\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s — %d mov. — G: %s / I: %s — Neto: %s\n",
			e.Position, e.Category, e.Count, Currency(e.Expense), Currency(e.Income), Currency(e.Net))
	}
	return plain(b.String())
}

func EmptyCategories(month *core.YearMonth) Reply {
	if month != nil {
		return plain(fmt.Sprintf("ℹ️ No hay movimientos en %s.", month))
	}
	return plain("ℹ️ No hay categorías registradas.")
}

// TopExpenses renders the largest expenses of a month.
func TopExpenses(month core.YearMonth, entries []ledger.TopEntry) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d gastos — %s\n\n", len(entries), month)
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s — %s — %s\n",
			e.Position, e.Movement.Category, Currency(e.Movement.Amount), e.Movement.Date.Format(dateLayout))
	}
	return strict(b.String())
}

func EmptyTopExpenses(month core.YearMonth) Reply {
	return plain(fmt.Sprintf("ℹ️ No hay gastos registrados en %s.", month))
}

// Recent renders the newest movements, numbered from 1.
func Recent(movements []core.Movement) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Últimos %d movimientos:\n\n", len(movements))
	for i, m := range movements {
		fmt.Fprintf(&b, "%d. %s ID: %d %s — %s — %s\n",
			i+1, kindEmoji(m.Kind), m.ID, m.Category, Currency(m.Amount), m.Date.Format(dateLayout))
	}
	return strict(b.String())
}

func EmptyRecent() Reply {
	return plain("ℹ️ No tienes movimientos registrados.")
}

// Summary renders one month's income, expense and balance.
func Summary(s ledger.Summary) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Resumen — %s\n\n", s.Month)
	fmt.Fprintf(&b, "💵 Ingresos: %s\n", Currency(s.Income))
	fmt.Fprintf(&b, "💸 Gastos: %s\n", Currency(s.Expense))
	fmt.Fprintf(&b, "💰 Balance: %s\n", Currency(s.Balance))
	return strict(b.String())
}

// Search renders matches for text.
func Search(text string, movements []core.Movement) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Resultados de búsqueda para %q:\n", text)
	for _, m := range movements {
		fmt.Fprintf(&b, "ID: %d | %s - %s - %s - %s\n",
			m.ID, kindWord(m.Kind), m.Category, Currency(m.Amount), m.Date.Format(dateLayout))
	}
	return plain(b.String())
}

func EmptySearch() Reply {
	return plain("No se encontraron movimientos.")
}

func Deleted(id int64) Reply {
	return plain(fmt.Sprintf("Movimiento con ID %d eliminado correctamente.", id))
}

func Edited(id int64, category string, amount core.Money) Reply {
	return plain(fmt.Sprintf("Movimiento con ID %d actualizado: %s - %s", id, category, Currency(amount)))
}

func NotFound() Reply {
	return plain("No se encontró el movimiento.")
}

func GoalSet(target core.Money) Reply {
	return plain(fmt.Sprintf("🎯 Meta de ahorro fijada en %s.", Currency(target)))
}

// ExportCaption accompanies the CSV document.
const ExportCaption = "📄 Aquí tienes el historial de tus movimientos en formato CSV."

func EmptyExport() Reply {
	return plain("📭 No tienes movimientos registrados para exportar.")
}

func ExportDeliveryFailed() Reply {
	return plain("❌ Ocurrió un error al enviar el archivo.")
}

// Help lists every command with its description and usage.
func Help(commands []command.Command) Reply {
	var b strings.Builder
	b.WriteString("📖 *Lista de comandos disponibles*\n\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "%s — %s", c.Keyword, c.Description)
		if c.Usage != c.Keyword {
			fmt.Fprintf(&b, ": `%s`", c.Usage)
		}
		b.WriteString("\n")
	}
	return Reply{Text: b.String(), Mode: Markdown}
}

// Usage is the reply to input that did not match its command's grammar.
func Usage(err *core.ValidationError) Reply {
	return plain(fmt.Sprintf("⚠️ Formato inválido. Uso: %s", err.Usage))
}

func UnknownCommand(keyword string) Reply {
	return plain(fmt.Sprintf("🤔 No conozco el comando %s. Usa /ayuda para ver los comandos disponibles.", keyword))
}

var failures = map[string]string{
	"/gasto":      "❌ Error al registrar el gasto.",
	"/ingreso":    "❌ Error al registrar el ingreso.",
	"/balance":    "❌ Error al calcular el balance.",
	"/reporte":    "❌ Error al generar el reporte.",
	"/categorias": "❌ Error al obtener categorías.",
	"/topgastos":  "❌ Error al obtener el top de gastos.",
	"/ultimos":    "❌ Error al obtener movimientos.",
	"/resumen":    "❌ Error al obtener resumen.",
	"/exportar":   "❌ Error al exportar tus movimientos.",
	"/buscar":     "❌ Error al buscar movimientos.",
	"/eliminar":   "❌ Error al eliminar el movimiento.",
	"/editar":     "❌ Error al editar el movimiento.",
	"/meta":       "❌ Error al guardar la meta.",
}

// Failure is the generic reply for a storage failure while running keyword.
func Failure(keyword string) Reply {
	if msg, ok := failures[keyword]; ok {
		return plain(msg)
	}
	return plain("❌ Ocurrió un error inesperado.")
}
