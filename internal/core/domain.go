package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Expense Kind = iota + 1
	Income
)

// MaxCategoryLength bounds category labels in runes.
const MaxCategoryLength = 100

type (
	// Kind tells expenses from incomes. The zero value is invalid.
	Kind int

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Movement is a single ledger entry owned by exactly one user.
	Movement struct {
		ID       int64
		UserID   int64
		Kind     Kind
		Category string
		Amount   Money
		Date     Date
	}

	// Goal is a user's savings target. There is at most one per user.
	Goal struct {
		UserID int64
		Target Money
	}

	// Totals holds income and expense sums over some scope.
	Totals struct {
		Income  Money
		Expense Money
	}

	// CategoryKindSum is one row of a monthly grouping.
	CategoryKindSum struct {
		Category string
		Kind     Kind
		Sum      Money
	}

	// CategoryStat is one row of a category ranking.
	CategoryStat struct {
		Category   string
		ExpenseSum Money
		IncomeSum  Money
		Count      int64
	}
)

var (
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrCategoryTooLong = fmt.Errorf("category too long (max %d characters)", MaxCategoryLength)
	ErrInvalidUser     = errors.New("invalid user id")
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == Expense || k == Income
}

// String is meant for logs only; storage has its own encoding.
func (k Kind) String() string {
	switch k {
	case Expense:
		return "expense"
	case Income:
		return "income"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses the YYYY-MM-DD form used by the store.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// YearMonth returns the calendar month containing d.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: int(d.Month())}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Sub returns m minus o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// ValidateCategory checks a category label before it reaches the store.
func ValidateCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return ErrCategoryTooLong
	}
	return nil
}

func (m Movement) Validate() error {
	if m.UserID == 0 {
		return ErrInvalidUser
	}
	if !m.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := ValidateCategory(m.Category); err != nil {
		return err
	}
	if err := m.Amount.Validate(); err != nil {
		return err
	}
	return m.Date.Validate()
}

func (g Goal) Validate() error {
	if g.UserID == 0 {
		return ErrInvalidUser
	}
	return g.Target.Validate()
}

// Balance is income minus expense. It has no floor.
func (t Totals) Balance() Money {
	return t.Income.Sub(t.Expense)
}
