package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	"spendlog/internal/store"
)

// ErrCategoryNotFound marks a Create whose category is missing or owned by someone else.
// It wraps store.ErrNotFound.
var ErrCategoryNotFound = errors.New("category not found")

// CreateExpenseRequest carries the raw request values; Amount and Date are parsed here.
type CreateExpenseRequest struct {
	Amount      string
	CategoryID  string
	Description string
	// Date is "2006-01-02" (midnight in the user's timezone) or RFC 3339; empty means now.
	Date string
}

type ExpenseService struct {
	expenses   store.ExpenseStore
	categories store.CategoryStore
	users      store.UserStore
	notifier
	defaultTZ string
	now       func() time.Time
}

// NewExpenseService wires the expense use cases. events and cache may be nil.
func NewExpenseService(st store.Store, events EventPublisher, cache Invalidator, defaultTZ string) *ExpenseService {
	return &ExpenseService{
		expenses:   st,
		categories: st,
		users:      st,
		notifier:   notifier{events: events, cache: cache},
		defaultTZ:  defaultTZ,
		now:        time.Now,
	}
}

// List returns the user's expenses newest first, optionally narrowed to one category.
func (s *ExpenseService) List(ctx context.Context, userID, categoryID string) ([]core.Expense, error) {
	out, err := s.expenses.ListExpenses(ctx, userID, store.ExpenseFilter{CategoryID: categoryID})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (s *ExpenseService) Create(ctx context.Context, userID string, req CreateExpenseRequest) (core.Expense, error) {
	if strings.TrimSpace(req.Amount) == "" || strings.TrimSpace(req.CategoryID) == "" {
		return core.Expense{}, fmt.Errorf("%w: amount and category are required", core.ErrMissingField)
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	cat, err := s.categories.GetCategory(ctx, userID, req.CategoryID)
	if errors.Is(err, store.ErrNotFound) {
		return core.Expense{}, fmt.Errorf("%w: %s: %w", ErrCategoryNotFound, req.CategoryID, err)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("category %s: %w", req.CategoryID, err)
	}
	profile, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get user: %w", err)
	}

	now := s.now()
	date, err := parseExpenseDate(req.Date, profile.Location(s.defaultTZ), now)
	if err != nil {
		return core.Expense{}, err
	}

	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = cat.Name + " expense"
	}

	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		CategoryID:  cat.ID,
		Description: desc,
		Date:        date.UTC(),
		CreatedAt:   now.UTC(),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.expenses.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.invalidate(userID)
	ev := amqp.NewExpenseCreated(e, cat.Name, profile.Email)
	ev.Timezone = profile.Location(s.defaultTZ).String()
	s.publish(ctx, ev)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	e, err := s.expenses.GetExpense(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if err := s.expenses.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.invalidate(userID)
	s.publish(ctx, amqp.NewExpenseDeleted(e))
	return nil
}

func parseExpenseDate(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, raw)
}
