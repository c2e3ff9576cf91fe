package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"

	"spendlog/internal/cli"
	"spendlog/internal/config"
	"spendlog/internal/core"
	"spendlog/internal/export"
	"spendlog/internal/sheets"
	gsheet "spendlog/internal/sheets/google"
	"spendlog/internal/stats"
	"spendlog/internal/store"
)

type Params struct {
	Email  string `descr:"Email of the user to report on"`
	Period string `descr:"Report period" alts:"daily,weekly,monthly" strict:"true" default:"monthly"`
	Date   string `descr:"Reference date (YYYY-MM-DD); defaults to today in the user's timezone" optional:"true"`
	Format string `descr:"Output format" alts:"table,yaml,xlsx,sheets" strict:"true" default:"table"`
	Out    string `descr:"Output file; stdout for table and yaml when empty" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("spendlog-export").
		WithShort("Export a user's expenses for a period").
		WithLong("Aggregates one user's expenses for a daily, weekly or monthly period in their own timezone and prints a table, YAML, writes an xlsx workbook or appends the rows to the configured Google Sheet.").
		WithRunFunc(func(params *Params) {
			cfg, logger := cli.MustBootstrap("spendlog-export", cli.ValidateBackend)

			ctx, stop := cli.SignalContext(context.Background())
			defer stop()

			result, err := cli.OpenStore(ctx, cfg, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening data backend: %v\n", err)
				os.Exit(1)
			}
			defer result.Cleanup()

			fallback, _ := core.LoadLocation(cfg.DefaultTimezone)
			report, err := buildReport(ctx, result.Store, stats.New(stats.WithFallbackLocation(fallback)), params)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building report: %v\n", err)
				os.Exit(1)
			}

			dest, err := writeReport(ctx, report, params, os.Stdout, googleSheet(cfg))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
				os.Exit(1)
			}
			if dest != "" {
				fmt.Fprintf(os.Stderr, "Wrote %d expenses to %s\n", len(report.Lines), dest)
			}
		}).
		Run()
}

// buildReport loads the user's snapshot and aggregates the requested period.
func buildReport(ctx context.Context, st store.Store, agg *stats.Aggregator, p *Params) (export.Report, error) {
	period, err := core.ParsePeriod(p.Period)
	if err != nil {
		return export.Report{}, err
	}
	if p.Date != "" {
		if _, err := time.Parse(time.DateOnly, p.Date); err != nil {
			return export.Report{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", p.Date)
		}
	}

	u, err := st.GetUserByEmail(ctx, core.NormalizeEmail(p.Email))
	if err != nil {
		return export.Report{}, fmt.Errorf("find user %s: %w", p.Email, err)
	}
	categories, err := st.ListCategories(ctx, u.ID)
	if err != nil {
		return export.Report{}, fmt.Errorf("list categories: %w", err)
	}
	expenses, err := st.ListExpenses(ctx, u.ID, store.ExpenseFilter{})
	if err != nil {
		return export.Report{}, fmt.Errorf("list expenses: %w", err)
	}

	res := agg.Aggregate(stats.Input{
		Expenses:   expenses,
		Categories: categories,
		Timezone:   u.Timezone,
		Period:     period,
		Date:       p.Date,
	})
	return export.NewReport(u.UserProfile, categories, expenses, res), nil
}

// writeReport renders r in the requested format and returns where it went.
// An empty destination means stdout.
func writeReport(ctx context.Context, r export.Report, p *Params, stdout io.Writer, openSheet func(context.Context) (sheets.RowWriter, error)) (string, error) {
	switch p.Format {
	case "table", "":
		return writeTo(p.Out, stdout, func(w io.Writer) error {
			export.RenderTable(w, r)
			return nil
		})
	case "yaml":
		return writeTo(p.Out, stdout, func(w io.Writer) error { return export.RenderYAML(w, r) })
	case "xlsx":
		out := p.Out
		if out == "" {
			out = fmt.Sprintf("spendlog-%s-%s.xlsx", r.Period, r.Start.Format(time.DateOnly))
		}
		return writeTo(out, stdout, func(w io.Writer) error { return export.WriteXLSX(w, r) })
	case "sheets":
		sheet, err := openSheet(ctx)
		if err != nil {
			return "", err
		}
		if err := sheet.Append(ctx, r.SheetRows()...); err != nil {
			return "", err
		}
		return "the configured Google Sheet", nil
	default:
		return "", fmt.Errorf("unknown format %q", p.Format)
	}
}

func writeTo(path string, stdout io.Writer, render func(io.Writer) error) (string, error) {
	if path == "" {
		return "", render(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func googleSheet(cfg *config.Config) func(context.Context) (sheets.RowWriter, error) {
	return func(ctx context.Context) (sheets.RowWriter, error) {
		if cfg.Google.SpreadsheetID == "" {
			return nil, fmt.Errorf("GOOGLE_SPREADSHEET_ID is required for the sheets format")
		}
		c, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.Google.SpreadsheetID,
			SheetName:       cfg.Google.SheetName,
			CredentialsJSON: cfg.Google.ServiceAccountJSON,
			CredentialsFile: cfg.Google.ServiceAccountFile,
		})
		if err != nil {
			return nil, err
		}
		if err := c.EnsureHeader(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}
