// Package memory is an in-process sheet for tests and local runs without Google credentials.
package memory

import (
	"context"
	"slices"
	"sync"

	"spendlog/internal/sheets"
)

type Sheet struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

var _ sheets.Mirror = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{}
}

// FailWith makes every later call return err; nil restores normal behavior.
func (s *Sheet) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Append stores the rows at the end of the sheet.
func (s *Sheet) Append(_ context.Context, rows ...sheets.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, r := range rows {
		s.rows = append(s.rows, []string{r.ID, r.Date, r.Category, r.Description, r.Amount, r.UserEmail, r.CategoryID})
	}
	return nil
}

func (s *Sheet) DeleteRows(_ context.Context, column int, value string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	before := len(s.rows)
	s.rows = slices.DeleteFunc(s.rows, func(row []string) bool {
		return column < len(row) && row[column] == value
	})
	return before - len(s.rows), nil
}

// Rows returns a copy of the sheet contents.
func (s *Sheet) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = slices.Clone(r)
	}
	return out
}
