// Package stats computes the dashboard view of a user's expenses: today's and
// this month's running totals, a paginated recent list, and a per-category
// breakdown for a selectable day, week or month.
//
// Every boundary is computed in the user's timezone. The aggregation is pure:
// it never mutates its inputs and identical inputs give identical results.
package stats

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Input is one user's snapshot plus the view selectors.
type Input struct {
	Expenses   []core.Expense
	Categories []core.Category
	Timezone   string
	Period     core.Period
	// Date is the reference date the period is anchored to ("2006-01-02" or RFC 3339).
	Date       string
	CategoryID string
	Page       int
	PageSize   int
}

type Bucket struct {
	Total    decimal.Decimal `json:"total"`
	Expenses []core.Expense  `json:"expenses"`
}

type Recent struct {
	Expenses   []core.Expense `json:"expenses"`
	Pagination Pagination     `json:"pagination"`
}

type CategoryStat struct {
	CategoryID    string          `json:"categoryId"`
	CategoryName  string          `json:"categoryName"`
	CategoryColor string          `json:"categoryColor"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Count         int             `json:"count"`
	Percentage    string          `json:"percentage"`
}

type Result struct {
	Daily         Bucket         `json:"daily"`
	Monthly       Bucket         `json:"monthly"`
	Recent        Recent         `json:"recent"`
	CategoryStats []CategoryStat `json:"categoryStats"`
	Period        core.Period    `json:"period"`
	Window        Window         `json:"window"`
	Timezone      string         `json:"timezone"`
}

// Totals is the always-current pair of running totals.
type Totals struct {
	Daily    decimal.Decimal `json:"daily"`
	Monthly  decimal.Decimal `json:"monthly"`
	Timezone string          `json:"timezone"`
}

func (b Bucket) MarshalJSON() ([]byte, error) {
	type bucket Bucket
	return json.Marshal(struct {
		bucket
		Total json.Number `json:"total"`
	}{bucket(b), core.JSONAmount(b.Total)})
}

func (c CategoryStat) MarshalJSON() ([]byte, error) {
	type categoryStat CategoryStat
	return json.Marshal(struct {
		categoryStat
		TotalAmount json.Number `json:"totalAmount"`
	}{categoryStat(c), core.JSONAmount(c.TotalAmount)})
}

func (t Totals) MarshalJSON() ([]byte, error) {
	type totals Totals
	return json.Marshal(struct {
		totals
		Daily   json.Number `json:"daily"`
		Monthly json.Number `json:"monthly"`
	}{totals(t), core.JSONAmount(t.Daily), core.JSONAmount(t.Monthly)})
}

type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithFallbackLocation sets the zone used when the input timezone cannot be loaded.
func WithFallbackLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.fallback = loc
		}
	}
}

type Aggregator struct {
	now      func() time.Time
	fallback *time.Location
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now, fallback: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) location(tz string) *time.Location {
	if loc, err := core.LoadLocation(tz); err == nil {
		return loc
	}
	return a.fallback
}

// Aggregate builds the full dashboard result for in.
func (a *Aggregator) Aggregate(in Input) Result {
	loc := a.location(in.Timezone)
	now := a.now().In(loc)

	period := in.Period
	if period == "" {
		period = core.PeriodDaily
	}

	daily := DayWindow(now).Filter(in.Expenses)
	monthly := MonthWindow(now).Filter(in.Expenses)

	ref := ReferenceTime(in.Date, loc, now)
	window := PeriodWindow(period, ref)

	recent, pagination := Paginate(recentOrder(in.Expenses, in.CategoryID), in.Page, in.PageSize)

	return Result{
		Daily:   Bucket{Total: core.Sum(daily), Expenses: daily},
		Monthly: Bucket{Total: core.Sum(monthly), Expenses: monthly},
		Recent: Recent{
			Expenses:   recent,
			Pagination: pagination,
		},
		CategoryStats: CategoryBreakdown(window.Filter(in.Expenses), in.Categories),
		Period:        period,
		Window:        window,
		Timezone:      loc.String(),
	}
}

// Totals computes only the daily and monthly running totals.
func (a *Aggregator) Totals(expenses []core.Expense, tz string) Totals {
	loc := a.location(tz)
	now := a.now().In(loc)
	return Totals{
		Daily:    core.Sum(DayWindow(now).Filter(expenses)),
		Monthly:  core.Sum(MonthWindow(now).Filter(expenses)),
		Timezone: loc.String(),
	}
}

// CategoryBreakdown groups expenses by category and orders the groups by total, largest first.
// Groups with equal totals keep the order in which they first appear.
func CategoryBreakdown(expenses []core.Expense, categories []core.Category) []CategoryStat {
	lookup := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		lookup[c.ID] = c
	}

	index := make(map[string]int)
	out := make([]CategoryStat, 0)
	periodTotal := decimal.Zero

	for _, e := range expenses {
		id := e.GroupID()
		i, ok := index[id]
		if !ok {
			stat := CategoryStat{
				CategoryID:    id,
				CategoryName:  core.UncategorizedName,
				CategoryColor: core.DefaultCategoryColor,
				TotalAmount:   decimal.Zero,
			}
			if c, found := lookup[id]; found {
				stat.CategoryName = c.Name
				stat.CategoryColor = c.Color
			}
			i = len(out)
			index[id] = i
			out = append(out, stat)
		}
		out[i].TotalAmount = out[i].TotalAmount.Add(e.Amount)
		out[i].Count++
		periodTotal = periodTotal.Add(e.Amount)
	}

	slices.SortStableFunc(out, func(a, b CategoryStat) int {
		return b.TotalAmount.Cmp(a.TotalAmount)
	})

	for i := range out {
		out[i].Percentage = Percentage(out[i].TotalAmount, periodTotal)
	}
	return out
}

// Percentage renders part/total*100 with one decimal, or "0" when total is zero.
func Percentage(part, total decimal.Decimal) string {
	if !total.IsPositive() {
		return "0"
	}
	return part.Div(total).Mul(hundred).StringFixed(1)
}

// recentOrder returns a date-descending copy of expenses, optionally limited to one category.
func recentOrder(expenses []core.Expense, categoryID string) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if categoryID == "" || e.GroupID() == categoryID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Expense) int {
		return b.Date.Compare(a.Date)
	})
	return out
}
