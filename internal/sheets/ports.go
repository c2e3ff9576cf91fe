// Package sheets mirrors expenses into a spreadsheet, one row per expense.
package sheets

import (
	"context"
	"time"

	"spendlog/internal/core"
)

// Header is the first row of a mirror sheet.
var Header = []string{"ID", "Date", "Category", "Description", "Amount", "User", "Category ID"}

// Column positions used for lookups.
const (
	ColumnID         = 0
	ColumnCategoryID = 6
)

// Row is one mirrored expense.
type Row struct {
	ID          string
	Date        string
	Category    string
	Description string
	Amount      string
	UserEmail   string
	CategoryID  string
}

// NewRow formats an expense for the sheet. The date is rendered in loc.
func NewRow(e core.Expense, categoryName, userEmail string, loc *time.Location) Row {
	if loc == nil {
		loc = time.UTC
	}
	return Row{
		ID:          e.ID,
		Date:        e.Date.In(loc).Format(time.DateOnly),
		Category:    categoryName,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		UserEmail:   userEmail,
		CategoryID:  e.CategoryID,
	}
}

// Values returns the row in column order.
func (r Row) Values() []any {
	return []any{r.ID, r.Date, r.Category, r.Description, r.Amount, r.UserEmail, r.CategoryID}
}

// Ports for outbound adapters.
type (
	RowWriter interface {
		Append(ctx context.Context, rows ...Row) error
	}

	RowDeleter interface {
		// DeleteRows removes every row whose column holds value and reports how many went.
		DeleteRows(ctx context.Context, column int, value string) (int, error)
	}

	Mirror interface {
		RowWriter
		RowDeleter
	}
)
