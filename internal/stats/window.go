package stats

import (
	"strings"
	"time"

	"spendlog/internal/core"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Filter returns the expenses dated inside the window, preserving their order.
func (w Window) Filter(expenses []core.Expense) []core.Expense {
	out := make([]core.Expense, 0)
	for _, e := range expenses {
		if w.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// DayWindow spans the calendar day of t in t's location. DST days are 23 or 25 hours long.
func DayWindow(t time.Time) Window {
	y, m, d := t.Date()
	return Window{
		Start: time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()),
	}
}

// WeekWindow spans the Sunday-to-Saturday week containing t.
func WeekWindow(t time.Time) Window {
	y, m, d := t.Date()
	d -= int(t.Weekday())
	return Window{
		Start: time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
		End:   time.Date(y, m, d+7, 0, 0, 0, 0, t.Location()),
	}
}

// MonthWindow spans the calendar month containing t.
func MonthWindow(t time.Time) Window {
	y, m, _ := t.Date()
	return Window{
		Start: time.Date(y, m, 1, 0, 0, 0, 0, t.Location()),
		End:   time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location()),
	}
}

// PeriodWindow selects the window for p around t. Unknown periods are treated as daily.
func PeriodWindow(p core.Period, t time.Time) Window {
	switch p {
	case core.PeriodWeekly:
		return WeekWindow(t)
	case core.PeriodMonthly:
		return MonthWindow(t)
	default:
		return DayWindow(t)
	}
}

// ReferenceTime interprets raw in loc. A bare date means that calendar day in loc;
// RFC 3339 instants are converted to loc. Anything else, including "", yields now.
func ReferenceTime(raw string, loc *time.Location, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.In(loc)
		}
	}
	return now.In(loc)
}
