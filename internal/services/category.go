package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/store"
)

type CategoryService struct {
	categories store.CategoryStore
	notifier
	now func() time.Time
}

func NewCategoryService(categories store.CategoryStore, events EventPublisher, cache Invalidator) *CategoryService {
	return &CategoryService{
		categories: categories,
		notifier:   notifier{events: events, cache: cache},
		now:        time.Now,
	}
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Create adds a category at the end of the user's order. An empty color picks
// one from the palette.
func (s *CategoryService) Create(ctx context.Context, userID, name, color string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, fmt.Errorf("%w: category name is required", core.ErrMissingField)
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = core.RandomColor()
	}

	existing, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return core.Category{}, fmt.Errorf("list categories: %w", err)
	}
	order := 0
	for _, c := range existing {
		if c.Name == name {
			return core.Category{}, fmt.Errorf("category %q: %w", name, store.ErrConflict)
		}
		order = max(order, c.Order+1)
	}

	c := core.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		Order:     order,
		CreatedAt: s.now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.invalidate(userID)
	return c, nil
}

// Delete removes the category with all of its expenses.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.categories.DeleteCategory(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	slog.InfoContext(ctx, "Category deleted",
		applog.FieldComponent, applog.ComponentCategory,
		applog.FieldCategoryID, id,
		"deleted_expenses", n)

	s.invalidate(userID)
	s.publish(ctx, amqp.NewCategoryDeleted(userID, id))
	return nil
}

// Reorder applies the new ranks and reports how many of the user's categories changed.
func (s *CategoryService) Reorder(ctx context.Context, userID string, orders []store.CategoryOrder) (int, error) {
	n, err := s.categories.UpdateCategoryOrders(ctx, userID, orders)
	if err != nil {
		return 0, fmt.Errorf("reorder categories: %w", err)
	}
	s.invalidate(userID)
	return n, nil
}

// ResetColors reassigns palette colors by list position and returns the updated categories.
func (s *CategoryService) ResetColors(ctx context.Context, userID string) ([]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	colors := make([]store.CategoryColor, len(cats))
	for i := range cats {
		cats[i].Color = core.PaletteColor(i)
		colors[i] = store.CategoryColor{CategoryID: cats[i].ID, Color: cats[i].Color}
	}
	if _, err := s.categories.UpdateCategoryColors(ctx, userID, colors); err != nil {
		return nil, fmt.Errorf("update category colors: %w", err)
	}

	s.invalidate(userID)
	return cats, nil
}

// BackfillOrder numbers every category stored without an order, across all users.
func (s *CategoryService) BackfillOrder(ctx context.Context) (int, error) {
	n, err := s.categories.BackfillCategoryOrder(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill category order: %w", err)
	}
	if n > 0 && s.cache != nil {
		s.cache.InvalidateAll()
	}
	slog.InfoContext(ctx, "Category order backfill completed",
		applog.FieldComponent, applog.ComponentCategory,
		"updated", n)
	return n, nil
}
