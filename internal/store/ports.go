// Package store defines the persistence ports the services depend on.
// Adapters live in the sqlite, mongo and memory subpackages.
package store

import (
	"context"
	"errors"

	"spendlog/internal/core"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("already exists")
)

// User is a profile together with its credentials.
type User struct {
	core.UserProfile
	PasswordHash string
}

// CategoryOrder moves one category to a new display rank.
type CategoryOrder struct {
	CategoryID string `json:"categoryId"`
	Order      int    `json:"order"`
}

// CategoryColor assigns a color to one category.
type CategoryColor struct {
	CategoryID string
	Color      string
}

// ExpenseFilter narrows ListExpenses. The zero value matches everything.
type ExpenseFilter struct {
	CategoryID string
}

// Ports for outbound adapters.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u User) error
		GetUser(ctx context.Context, id string) (core.UserProfile, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateProfile(ctx context.Context, p core.UserProfile) error
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		// ListCategories returns the user's categories by order, then creation time.
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		// DeleteCategory removes the category and every expense filed under it.
		DeleteCategory(ctx context.Context, userID, id string) (deletedExpenses int64, err error)
		// UpdateCategoryOrders applies the orders that target the user's categories
		// and reports how many were updated. Unknown ids are skipped.
		UpdateCategoryOrders(ctx context.Context, userID string, orders []CategoryOrder) (int, error)
		UpdateCategoryColors(ctx context.Context, userID string, colors []CategoryColor) (int, error)
		// BackfillCategoryOrder numbers categories stored without an order,
		// per user by creation time, and reports how many changed.
		BackfillCategoryOrder(ctx context.Context) (int, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) error
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		// ListExpenses returns the user's expenses, newest first.
		ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	// Store is the full persistence surface with its lifecycle.
	Store interface {
		UserStore
		CategoryStore
		ExpenseStore
		Ping(ctx context.Context) error
		Close() error
	}
)
