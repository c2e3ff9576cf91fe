package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

// Store keeps everything in process memory. Every operation runs under one lock,
// so category deletion with its expenses is atomic.
type Store struct {
	mu         sync.Mutex
	users      map[string]store.User
	emails     map[string]string
	categories map[string]core.Category
	expenses   map[string]core.Expense
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      map[string]store.User{},
		emails:     map[string]string{},
		categories: map[string]core.Category{},
		expenses:   map[string]core.Expense{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return store.ErrConflict
	}
	if _, ok := s.users[u.ID]; ok {
		return store.ErrConflict
	}
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.UserProfile{}, store.ErrNotFound
	}
	return u.UserProfile, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UpdateProfile(_ context.Context, p core.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	// email and creation time are not editable
	p.Email = u.Email
	p.CreatedAt = u.CreatedAt
	u.UserProfile = p
	s.users[p.ID] = u
	return nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return store.ErrConflict
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.Category) int {
		return cmp.Or(
			cmp.Compare(a.Order, b.Order),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return 0, store.ErrNotFound
	}
	var deleted int64
	for eid, e := range s.expenses {
		if e.UserID == userID && e.CategoryID == id {
			delete(s.expenses, eid)
			deleted++
		}
	}
	delete(s.categories, id)
	return deleted, nil
}

func (s *Store) UpdateCategoryOrders(_ context.Context, userID string, orders []store.CategoryOrder) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, o := range orders {
		c, ok := s.categories[o.CategoryID]
		if !ok || c.UserID != userID {
			continue
		}
		c.Order = o.Order
		s.categories[c.ID] = c
		updated++
	}
	return updated, nil
}

func (s *Store) UpdateCategoryColors(_ context.Context, userID string, colors []store.CategoryColor) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, cc := range colors {
		c, ok := s.categories[cc.CategoryID]
		if !ok || c.UserID != userID {
			continue
		}
		c.Color = cc.Color
		s.categories[c.ID] = c
		updated++
	}
	return updated, nil
}

// BackfillCategoryOrder is a no-op: categories created here always carry an order.
func (s *Store) BackfillCategoryOrder(context.Context) (int, error) {
	return 0, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; ok {
		return store.ErrConflict
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, f store.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		if f.CategoryID != "" && e.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b core.Expense) int {
		return cmp.Or(
			b.Date.Compare(a.Date),
			b.CreatedAt.Compare(a.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}
