package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"finanzas/internal/core"
)

const (
	DefaultCategoriesLimit = 10
	DefaultTopLimit        = 5
	DefaultRecentLimit     = 5
	SearchLimit            = 10
)

var yearMonthShape = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}$`)

// Command describes one entry of the grammar table, as shown by /ayuda.
type Command struct {
	Keyword     string
	Usage       string
	Description string
}

type grammar struct {
	Command
	parse func(args string) (Operation, error)
}

// Router matches a line against a fixed grammar table.
type Router struct {
	grammars []grammar
	byName   map[string]int
}

// NewRouter builds the router with the full command set.
func NewRouter() *Router {
	r := &Router{
		grammars: []grammar{
			{Command{"/gasto", "/gasto <categoria> <monto>", "Registrar un nuevo gasto"}, parseRecord(core.Expense)},
			{Command{"/ingreso", "/ingreso <categoria> <monto>", "Registrar un nuevo ingreso"}, parseRecord(core.Income)},
			{Command{"/balance", "/balance", "Mostrar tu balance actual"}, parseNoArgs(Balance{})},
			{Command{"/reporte", "/reporte", "Ver resumen mensual"}, parseNoArgs(Report{})},
			{Command{"/categorias", "/categorias [YYYY-MM] [n]", "Ver categorías más comunes"}, parseCategories},
			{Command{"/topgastos", "/topgastos [YYYY-MM] [n]", "Ver los gastos más altos"}, parseTopExpenses},
			{Command{"/ultimos", "/ultimos [n]", "Ver tus últimos movimientos"}, parseRecent},
			{Command{"/resumen", "/resumen [YYYY-MM]", "Ver resumen de un mes"}, parseSummary},
			{Command{"/exportar", "/exportar", "Exportar movimientos en CSV"}, parseNoArgs(Export{})},
			{Command{"/buscar", "/buscar <texto>", "Buscar movimientos por categoría"}, parseSearch},
			{Command{"/eliminar", "/eliminar <id>", "Eliminar un movimiento"}, parseDelete},
			{Command{"/editar", "/editar <id> <nueva_categoria> <nuevo_monto>", "Editar un movimiento"}, parseEdit},
			{Command{"/meta", "/meta <monto>", "Establecer meta de ahorro"}, parseSetGoal},
			{Command{"/ayuda", "/ayuda", "Mostrar todos los comandos disponibles"}, parseNoArgs(Help{})},
		},
		byName: make(map[string]int),
	}
	for i, g := range r.grammars {
		r.byName[g.Keyword] = i
	}
	return r
}

// Commands lists the grammar table in declaration order.
func (r *Router) Commands() []Command {
	out := make([]Command, len(r.grammars))
	for i, g := range r.grammars {
		out[i] = g.Command
	}
	return out
}

// Usage returns the usage text of a keyword, or "" if unknown.
func (r *Router) Usage(keyword string) string {
	if i, ok := r.byName[keyword]; ok {
		return r.grammars[i].Usage
	}
	return ""
}

// Parse turns a line into an Operation. It fails with core.ErrNotACommand,
// core.ErrUnknownCommand or a *core.ValidationError carrying the usage.
func (r *Router) Parse(line string) (Operation, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return nil, core.ErrNotACommand
	}

	keyword, args := splitKeyword(line)
	i, ok := r.byName[keyword]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownCommand, keyword)
	}

	g := r.grammars[i]
	op, err := g.parse(args)
	if err != nil {
		return nil, &core.ValidationError{Command: g.Keyword, Usage: g.Usage, Reason: err.Error()}
	}
	return op, nil
}

// Keyword returns the command keyword of line without any @suffix.
func Keyword(line string) string {
	keyword, _ := splitKeyword(strings.TrimSpace(line))
	return keyword
}

// splitKeyword separates "/cmd@bot rest" into "/cmd" and "rest".
func splitKeyword(line string) (string, string) {
	keyword, args := line, ""
	if idx := strings.IndexFunc(line, unicode.IsSpace); idx >= 0 {
		keyword, args = line[:idx], strings.TrimSpace(line[idx:])
	}
	if at := strings.IndexByte(keyword, '@'); at > 0 {
		keyword = keyword[:at]
	}
	return keyword, args
}

func parseNoArgs(op Operation) func(string) (Operation, error) {
	return func(args string) (Operation, error) {
		if args != "" {
			return nil, fmt.Errorf("unexpected arguments %q", args)
		}
		return op, nil
	}
}

// parseRecord takes everything up to the last token as the category, so
// categories may contain spaces.
func parseRecord(kind core.Kind) func(string) (Operation, error) {
	return func(args string) (Operation, error) {
		idx := strings.LastIndexFunc(args, unicode.IsSpace)
		if idx < 0 {
			return nil, fmt.Errorf("missing category or amount")
		}
		category := strings.TrimSpace(args[:idx])
		amount, err := core.ParseUnits(args[idx+1:])
		if err != nil {
			return nil, err
		}
		if err := core.ValidateCategory(category); err != nil {
			return nil, err
		}
		if kind == core.Expense {
			return RecordExpense{Category: category, Amount: amount}, nil
		}
		return RecordIncome{Category: category, Amount: amount}, nil
	}
}

func parseCategories(args string) (Operation, error) {
	month, limit, err := parseMonthAndLimit(args, DefaultCategoriesLimit)
	if err != nil {
		return nil, err
	}
	return Categories{Month: month, Limit: limit}, nil
}

func parseTopExpenses(args string) (Operation, error) {
	month, limit, err := parseMonthAndLimit(args, DefaultTopLimit)
	if err != nil {
		return nil, err
	}
	return TopExpenses{Month: month, Limit: limit}, nil
}

func parseRecent(args string) (Operation, error) {
	fields := strings.Fields(args)
	if len(fields) > 1 {
		return nil, fmt.Errorf("too many arguments")
	}
	limit := DefaultRecentLimit
	if len(fields) == 1 {
		n, err := parseLimit(fields[0], DefaultRecentLimit)
		if err != nil {
			return nil, err
		}
		limit = n
	}
	return Recent{Limit: limit}, nil
}

func parseSummary(args string) (Operation, error) {
	fields := strings.Fields(args)
	if len(fields) > 1 {
		return nil, fmt.Errorf("too many arguments")
	}
	if len(fields) == 0 {
		return Summary{}, nil
	}
	ym, err := parseMonth(fields[0])
	if err != nil {
		return nil, err
	}
	return Summary{Month: ym}, nil
}

func parseSearch(args string) (Operation, error) {
	if args == "" {
		return nil, fmt.Errorf("missing search text")
	}
	return Search{Text: args, Limit: SearchLimit}, nil
}

func parseDelete(args string) (Operation, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return nil, fmt.Errorf("expected one id")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return nil, err
	}
	return Delete{ID: id}, nil
}

// parseEdit only takes a single-word category, unlike /gasto and /ingreso.
func parseEdit(args string) (Operation, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected id, category and amount")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return nil, err
	}
	if !isWord(fields[1]) {
		return nil, fmt.Errorf("category must be a single word")
	}
	if err := core.ValidateCategory(fields[1]); err != nil {
		return nil, err
	}
	amount, err := core.ParseUnits(fields[2])
	if err != nil {
		return nil, err
	}
	return Edit{ID: id, Category: fields[1], Amount: amount}, nil
}

func parseSetGoal(args string) (Operation, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return nil, fmt.Errorf("expected one amount")
	}
	amount, err := core.ParseUnits(fields[0])
	if err != nil {
		return nil, err
	}
	return SetGoal{Amount: amount}, nil
}

// parseMonthAndLimit reads "[YYYY-MM] [n]" in that order.
func parseMonthAndLimit(args string, defaultLimit int) (*core.YearMonth, int, error) {
	fields := strings.Fields(args)
	var (
		month *core.YearMonth
		limit = defaultLimit
		i     int
	)
	if i < len(fields) && yearMonthShape.MatchString(fields[i]) {
		ym, err := parseMonth(fields[i])
		if err != nil {
			return nil, 0, err
		}
		month = ym
		i++
	}
	if i < len(fields) {
		n, err := parseLimit(fields[i], defaultLimit)
		if err != nil {
			return nil, 0, err
		}
		limit = n
		i++
	}
	if i != len(fields) {
		return nil, 0, fmt.Errorf("unexpected arguments")
	}
	return month, limit, nil
}

func parseMonth(s string) (*core.YearMonth, error) {
	if !yearMonthShape.MatchString(s) {
		return nil, fmt.Errorf("month must be YYYY-MM")
	}
	ym, err := core.ParseYearMonth(s)
	if err != nil {
		return nil, err
	}
	return &ym, nil
}

// parseLimit accepts digits only; zero falls back to the default.
func parseLimit(s string, defaultLimit int) (int, error) {
	if !isDigits(s) {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	if n == 0 {
		return defaultLimit, nil
	}
	return n, nil
}

func parseID(s string) (int64, error) {
	if !isDigits(s) {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
