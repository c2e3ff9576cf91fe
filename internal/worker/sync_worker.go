package worker

import (
	"context"
	"fmt"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/sheets"
)

// SyncWorker mirrors expense events into a spreadsheet.
type SyncWorker struct {
	mirror     sheets.Mirror
	defaultLoc *time.Location
	logger     *applog.Logger
	events     *applog.StructuredLogger
}

var _ amqp.Handler = (*SyncWorker)(nil)

// NewSyncWorker builds a worker. defaultTZ is used for events that carry no timezone.
func NewSyncWorker(mirror sheets.Mirror, defaultTZ string, logger *applog.Logger) *SyncWorker {
	loc, err := core.LoadLocation(defaultTZ)
	if err != nil {
		loc = time.UTC
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	return &SyncWorker{
		mirror:     mirror,
		defaultLoc: loc,
		logger:     logger,
		events:     applog.NewStructuredLogger(logger),
	}
}

// HandleEvent applies one event to the sheet. Errors are returned so the delivery is requeued.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	switch ev.Type {
	case amqp.EventExpenseCreated:
		return w.appendExpense(ctx, ev)
	case amqp.EventExpenseDeleted:
		return w.deleteRows(ctx, ev, sheets.ColumnID)
	case amqp.EventCategoryDeleted:
		return w.deleteRows(ctx, ev, sheets.ColumnCategoryID)
	default:
		w.logger.WarnContext(ctx, "Skipping unknown event", "type", ev.Type, "id", ev.ID)
		return nil
	}
}

func (w *SyncWorker) appendExpense(ctx context.Context, ev *amqp.Event) error {
	e := core.Expense{
		ID:          ev.ID,
		UserID:      ev.UserID,
		Amount:      ev.Amount,
		CategoryID:  ev.CategoryID,
		Description: ev.Description,
		Date:        ev.Date,
	}
	row := sheets.NewRow(e, ev.CategoryName, ev.UserEmail, w.location(ev.Timezone))
	if err := w.mirror.Append(ctx, row); err != nil {
		w.events.LogError(ctx, "Failed to append expense row", err, applog.ComponentSheets, applog.OpAppend,
			applog.NewFields().WithUser(ev.UserID).WithExpense(ev.ID, ev.CategoryID, ev.Amount.String()))
		return fmt.Errorf("append expense %s: %w", ev.ID, err)
	}

	w.logger.InfoContext(ctx, "Expense mirrored",
		"id", ev.ID,
		"user_id", ev.UserID,
		"date", row.Date,
		"amount", row.Amount)
	return nil
}

func (w *SyncWorker) deleteRows(ctx context.Context, ev *amqp.Event, column int) error {
	n, err := w.mirror.DeleteRows(ctx, column, ev.ID)
	if err != nil {
		w.events.LogError(ctx, "Failed to delete rows", err, applog.ComponentSheets, applog.OpDelete,
			applog.NewFields().WithUser(ev.UserID))
		return fmt.Errorf("%s %s: %w", ev.Type, ev.ID, err)
	}

	w.logger.InfoContext(ctx, "Rows removed",
		"type", ev.Type,
		"id", ev.ID,
		"rows", n)
	return nil
}

func (w *SyncWorker) location(tz string) *time.Location {
	if tz == "" {
		return w.defaultLoc
	}
	loc, err := core.LoadLocation(tz)
	if err != nil {
		return w.defaultLoc
	}
	return loc
}
