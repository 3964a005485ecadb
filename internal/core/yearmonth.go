package core

import (
	"fmt"
	"time"
)

// YearMonth is a calendar-month filter in YYYY-MM form.
type YearMonth struct {
	Year  int
	Month int
}

// ParseYearMonth accepts exactly YYYY-MM with a month between 01 and 12.
func ParseYearMonth(s string) (YearMonth, error) {
	if len(s) != 7 {
		return YearMonth{}, fmt.Errorf("invalid year-month %q", s)
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Bounds returns the first day of the month and the first day of the next.
func (ym YearMonth) Bounds() (Date, Date) {
	first := NewDate(ym.Year, ym.Month, 1)
	return first, Date{Time: first.AddDate(0, 1, 0)}
}
