package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	ExpensesSheet   = "Expenses"
	CategoriesSheet = "Categories"
)

// WriteXLSX writes a workbook with an Expenses sheet and a Categories sheet.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExpensesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CategoriesSheet); err != nil {
		return fmt.Errorf("add %s sheet: %w", CategoriesSheet, err)
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	expenseRows := [][]any{{"Date", "Category", "Description", "Amount"}}
	for _, l := range r.Lines {
		expenseRows = append(expenseRows, []any{l.Date, l.Category, l.Description, l.Amount.InexactFloat64()})
	}
	expenseRows = append(expenseRows, []any{"", "", "Total", r.Total.InexactFloat64()})
	if err := writeRows(f, ExpensesSheet, expenseRows); err != nil {
		return err
	}

	categoryRows := [][]any{{"Category", "Count", "Total", "Percentage"}}
	for _, c := range r.Categories {
		categoryRows = append(categoryRows, []any{c.CategoryName, c.Count, c.TotalAmount.InexactFloat64(), c.Percentage})
	}
	if err := writeRows(f, CategoriesSheet, categoryRows); err != nil {
		return err
	}

	type cellStyle struct {
		sheet, from, to string
		style           int
	}
	styles := []cellStyle{
		{ExpensesSheet, "A1", "D1", headerStyle},
		{ExpensesSheet, "D2", fmt.Sprintf("D%d", len(expenseRows)), amountStyle},
		{CategoriesSheet, "A1", "D1", headerStyle},
	}
	if len(categoryRows) > 1 {
		styles = append(styles, cellStyle{CategoriesSheet, "C2", fmt.Sprintf("C%d", len(categoryRows)), amountStyle})
	}
	for _, s := range styles {
		if err := f.SetCellStyle(s.sheet, s.from, s.to, s.style); err != nil {
			return fmt.Errorf("style %s!%s:%s: %w", s.sheet, s.from, s.to, err)
		}
	}
	if err := f.SetColWidth(ExpensesSheet, "C", "C", 40); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
