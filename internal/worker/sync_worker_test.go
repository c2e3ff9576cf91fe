package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/amqp"
	applog "spendlog/internal/log"
	"spendlog/internal/sheets/memory"
)

func newTestWorker(t *testing.T) (*SyncWorker, *memory.Sheet) {
	t.Helper()
	sheet := memory.New()
	logger := applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
	return NewSyncWorker(sheet, "America/New_York", logger), sheet
}

func created(id, categoryID string, date time.Time, tz string) *amqp.Event {
	return &amqp.Event{
		Type:         amqp.EventExpenseCreated,
		ID:           id,
		UserID:       "u1",
		UserEmail:    "ada@example.com",
		Timezone:     tz,
		Amount:       decimal.RequireFromString("12.5"),
		CategoryID:   categoryID,
		CategoryName: "Food",
		Description:  "lunch",
		Date:         date,
		Timestamp:    time.Now(),
	}
}

func TestSyncWorker_ExpenseCreated(t *testing.T) {
	w, sheet := newTestWorker(t)
	ctx := context.Background()
	date := time.Date(2024, 6, 15, 22, 30, 0, 0, time.UTC)

	require.NoError(t, w.HandleEvent(ctx, created("e1", "c1", date, "Asia/Tokyo")))
	require.NoError(t, w.HandleEvent(ctx, created("e2", "c1", date, "")))

	rows := sheet.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"e1", "2024-06-16", "Food", "lunch", "12.50", "ada@example.com", "c1"}, rows[0])
	assert.Equal(t, "2024-06-15", rows[1][1], "falls back to the default zone")
}

func TestSyncWorker_Deletes(t *testing.T) {
	w, sheet := newTestWorker(t)
	ctx := context.Background()
	date := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	for _, ev := range []*amqp.Event{
		created("e1", "c1", date, ""),
		created("e2", "c1", date, ""),
		created("e3", "c2", date, ""),
	} {
		require.NoError(t, w.HandleEvent(ctx, ev))
	}

	require.NoError(t, w.HandleEvent(ctx, &amqp.Event{Type: amqp.EventExpenseDeleted, ID: "e3", UserID: "u1"}))
	assert.Len(t, sheet.Rows(), 2)

	require.NoError(t, w.HandleEvent(ctx, &amqp.Event{Type: amqp.EventCategoryDeleted, ID: "c1", UserID: "u1", CategoryID: "c1"}))
	assert.Empty(t, sheet.Rows())

	require.NoError(t, w.HandleEvent(ctx, &amqp.Event{Type: amqp.EventExpenseDeleted, ID: "gone", UserID: "u1"}),
		"deleting a missing row is not an error")
}

func TestSyncWorker_PropagatesSheetErrors(t *testing.T) {
	w, sheet := newTestWorker(t)
	boom := errors.New("quota exceeded")
	sheet.FailWith(boom)

	err := w.HandleEvent(context.Background(), created("e1", "c1", time.Now(), ""))
	assert.ErrorIs(t, err, boom)

	err = w.HandleEvent(context.Background(), &amqp.Event{Type: amqp.EventExpenseDeleted, ID: "e1", UserID: "u1"})
	assert.ErrorIs(t, err, boom)
}

func TestSyncWorker_UnknownTypeIsSkipped(t *testing.T) {
	w, sheet := newTestWorker(t)
	assert.NoError(t, w.HandleEvent(context.Background(), &amqp.Event{Type: "expense.renamed", ID: "e1"}))
	assert.Empty(t, sheet.Rows())
}

func TestSyncWorker_BadDefaultZone(t *testing.T) {
	w := NewSyncWorker(memory.New(), "Mars/Base", applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)}))
	assert.Equal(t, time.UTC, w.defaultLoc)
}
