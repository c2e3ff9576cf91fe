package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderTable prints the category breakdown with a total footer.
func RenderTable(w io.Writer, r Report) {
	fmt.Fprintf(w, "%s: %s %s to %s (%s)\n",
		r.Email, r.Period, r.Start.Format(time.DateOnly), r.LastDay().Format(time.DateOnly), r.Timezone)
	fmt.Fprintf(w, "%d expenses in %d categories\n\n", len(r.Lines), len(r.Categories))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Count", "Total", "Share"})

	for _, c := range r.Categories {
		t.AppendRow(table.Row{
			c.CategoryName,
			c.Count,
			r.money(c.TotalAmount.StringFixed(2)),
			c.Percentage + "%",
		})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{
		text.Bold.Sprint("Total"),
		strconv.Itoa(len(r.Lines)),
		text.Bold.Sprint(r.money(r.Total.StringFixed(2))),
		"",
	})

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	t.Render()
}

func (r Report) money(amount string) string {
	if r.CurrencySymbol == "" {
		return amount
	}
	return r.CurrencySymbol + amount
}
