// Package export turns one user's period statistics into printable and
// downloadable reports: a terminal table, YAML, an xlsx workbook and sheet rows.
package export

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
	"spendlog/internal/sheets"
	"spendlog/internal/stats"
)

// Line is one expense as it appears in a report.
type Line struct {
	ID          string
	Date        string
	CategoryID  string
	Category    string
	Description string
	Amount      decimal.Decimal
}

// Report is a user's spending inside one period window.
type Report struct {
	Email          string
	Currency       string
	CurrencySymbol string
	Timezone       string
	Period         core.Period
	Start          time.Time
	// End is exclusive.
	End        time.Time
	Total      decimal.Decimal
	Categories []stats.CategoryStat
	Lines      []Line
}

// NewReport collects the expenses inside res.Window, oldest first.
func NewReport(profile core.UserProfile, categories []core.Category, expenses []core.Expense, res stats.Result) Report {
	loc := res.Window.Start.Location()

	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	inWindow := res.Window.Filter(expenses)
	slices.SortStableFunc(inWindow, func(a, b core.Expense) int {
		return a.Date.Compare(b.Date)
	})

	lines := make([]Line, len(inWindow))
	for i, e := range inWindow {
		name, ok := names[e.CategoryID]
		if !ok {
			name = core.UncategorizedName
		}
		lines[i] = Line{
			ID:          e.ID,
			Date:        e.Date.In(loc).Format(time.DateOnly),
			CategoryID:  e.CategoryID,
			Category:    name,
			Description: e.Description,
			Amount:      e.Amount,
		}
	}

	return Report{
		Email:          profile.Email,
		Currency:       profile.Currency,
		CurrencySymbol: profile.CurrencySymbol,
		Timezone:       res.Timezone,
		Period:         res.Period,
		Start:          res.Window.Start,
		End:            res.Window.End,
		Total:          core.Sum(inWindow),
		Categories:     res.CategoryStats,
		Lines:          lines,
	}
}

// LastDay is the final calendar day covered by the report.
func (r Report) LastDay() time.Time {
	return r.End.AddDate(0, 0, -1)
}

// SheetRows renders the report lines as mirror rows.
func (r Report) SheetRows() []sheets.Row {
	rows := make([]sheets.Row, len(r.Lines))
	for i, l := range r.Lines {
		rows[i] = sheets.Row{
			ID:          l.ID,
			Date:        l.Date,
			Category:    l.Category,
			Description: l.Description,
			Amount:      l.Amount.StringFixed(2),
			UserEmail:   r.Email,
			CategoryID:  l.CategoryID,
		}
	}
	return rows
}
