// Package storetest holds the behaviour every store adapter must share.
package storetest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

// Suite runs against a fresh store built by NewStore for every test.
type Suite struct {
	suite.Suite
	NewStore func() store.Store

	ctx   context.Context
	store store.Store
	base  time.Time
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
	s.base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *Suite) user(email string) store.User {
	u := store.User{
		UserProfile: core.UserProfile{
			ID:             uuid.NewString(),
			Email:          email,
			FirstName:      "Ann",
			LastName:       "Lee",
			Country:        "US",
			Currency:       "USD",
			CurrencySymbol: "$",
			Timezone:       "America/New_York",
			CreatedAt:      s.base,
		},
		PasswordHash: "hash",
	}
	s.Require().NoError(s.store.CreateUser(s.ctx, u))
	return u
}

func (s *Suite) category(userID, name string, order int, created time.Time) core.Category {
	c := core.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     "#FF6B6B",
		Order:     order,
		CreatedAt: created,
	}
	s.Require().NoError(s.store.CreateCategory(s.ctx, c))
	return c
}

func (s *Suite) expense(userID, categoryID, amount string, date time.Time) core.Expense {
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		CategoryID:  categoryID,
		Description: "test expense",
		Date:        date,
		CreatedAt:   s.base,
	}
	s.Require().NoError(s.store.CreateExpense(s.ctx, e))
	return e
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func (s *Suite) TestUsers() {
	u := s.user("ann@example.com")

	got, err := s.store.GetUserByEmail(s.ctx, "ann@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.Equal("hash", got.PasswordHash)
	s.Equal("America/New_York", got.Timezone)

	dup := u
	dup.ID = uuid.NewString()
	s.ErrorIs(s.store.CreateUser(s.ctx, dup), store.ErrConflict)

	_, err = s.store.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, store.ErrNotFound)

	p := u.UserProfile
	p.FirstName = "Anna"
	p.Timezone = "Europe/Rome"
	p.Currency = "EUR"
	p.CurrencySymbol = "€"
	s.Require().NoError(s.store.UpdateProfile(s.ctx, p))

	profile, err := s.store.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Anna", profile.FirstName)
	s.Equal("Europe/Rome", profile.Timezone)
	s.Equal("€", profile.CurrencySymbol)
	s.Equal("ann@example.com", profile.Email)

	missing := p
	missing.ID = uuid.NewString()
	s.ErrorIs(s.store.UpdateProfile(s.ctx, missing), store.ErrNotFound)
}

func (s *Suite) TestCategoriesAreOrderedAndUniquePerUser() {
	ann := s.user("ann@example.com")
	bob := s.user("bob@example.com")

	third := s.category(ann.ID, "Travel", 2, s.base)
	first := s.category(ann.ID, "Food", 0, s.base.Add(time.Minute))
	second := s.category(ann.ID, "Fun", 1, s.base)
	s.category(bob.ID, "Food", 0, s.base)

	dup := core.Category{ID: uuid.NewString(), UserID: ann.ID, Name: "Food", Color: "#4ECDC4", CreatedAt: s.base}
	s.ErrorIs(s.store.CreateCategory(s.ctx, dup), store.ErrConflict)

	list, err := s.store.ListCategories(s.ctx, ann.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal([]string{first.ID, second.ID, third.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	_, err = s.store.GetCategory(s.ctx, bob.ID, first.ID)
	s.ErrorIs(err, store.ErrNotFound)

	got, err := s.store.GetCategory(s.ctx, ann.ID, first.ID)
	s.Require().NoError(err)
	s.Equal("Food", got.Name)
	s.True(got.CreatedAt.Equal(first.CreatedAt))
}

func (s *Suite) TestDeleteCategoryCascades() {
	ann := s.user("ann@example.com")
	bob := s.user("bob@example.com")
	food := s.category(ann.ID, "Food", 0, s.base)
	fun := s.category(ann.ID, "Fun", 1, s.base)

	s.expense(ann.ID, food.ID, "10", s.base)
	s.expense(ann.ID, food.ID, "30", s.base)
	kept := s.expense(ann.ID, fun.ID, "20", s.base)

	_, err := s.store.DeleteCategory(s.ctx, bob.ID, food.ID)
	s.ErrorIs(err, store.ErrNotFound)

	deleted, err := s.store.DeleteCategory(s.ctx, ann.ID, food.ID)
	s.Require().NoError(err)
	s.EqualValues(2, deleted)

	left, err := s.store.ListExpenses(s.ctx, ann.ID, store.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(left, 1)
	s.Equal(kept.ID, left[0].ID)

	_, err = s.store.GetCategory(s.ctx, ann.ID, food.ID)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestUpdateCategoryOrdersOnlyTouchesOwnCategories() {
	ann := s.user("ann@example.com")
	bob := s.user("bob@example.com")
	a := s.category(ann.ID, "A", 0, s.base)
	b := s.category(ann.ID, "B", 1, s.base)
	foreign := s.category(bob.ID, "C", 0, s.base)

	n, err := s.store.UpdateCategoryOrders(s.ctx, ann.ID, []store.CategoryOrder{
		{CategoryID: a.ID, Order: 5},
		{CategoryID: b.ID, Order: 0},
		{CategoryID: foreign.ID, Order: 9},
		{CategoryID: uuid.NewString(), Order: 1},
	})
	s.Require().NoError(err)
	s.Equal(2, n)

	list, err := s.store.ListCategories(s.ctx, ann.ID)
	s.Require().NoError(err)
	s.Equal([]string{b.ID, a.ID}, []string{list[0].ID, list[1].ID})

	other, err := s.store.GetCategory(s.ctx, bob.ID, foreign.ID)
	s.Require().NoError(err)
	s.Equal(0, other.Order)
}

func (s *Suite) TestUpdateCategoryColors() {
	ann := s.user("ann@example.com")
	a := s.category(ann.ID, "A", 0, s.base)

	n, err := s.store.UpdateCategoryColors(s.ctx, ann.ID, []store.CategoryColor{{CategoryID: a.ID, Color: "#82E0AA"}})
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.store.GetCategory(s.ctx, ann.ID, a.ID)
	s.Require().NoError(err)
	s.Equal("#82E0AA", got.Color)
}

func (s *Suite) TestExpenses() {
	ann := s.user("ann@example.com")
	bob := s.user("bob@example.com")
	food := s.category(ann.ID, "Food", 0, s.base)

	older := s.expense(ann.ID, food.ID, "12.50", s.base)
	newer := s.expense(ann.ID, "", "3.10", s.base.Add(24*time.Hour))
	s.expense(bob.ID, "", "99", s.base)

	list, err := s.store.ListExpenses(s.ctx, ann.ID, store.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)
	s.True(list[1].Amount.Equal(decimal.RequireFromString("12.5")))
	s.True(list[1].Date.Equal(older.Date))
	s.Equal(food.ID, list[1].CategoryID)
	s.Equal("", list[0].CategoryID)

	byCategory, err := s.store.ListExpenses(s.ctx, ann.ID, store.ExpenseFilter{CategoryID: food.ID})
	s.Require().NoError(err)
	s.Require().Len(byCategory, 1)
	s.Equal(older.ID, byCategory[0].ID)

	got, err := s.store.GetExpense(s.ctx, ann.ID, older.ID)
	s.Require().NoError(err)
	s.Equal("test expense", got.Description)

	_, err = s.store.GetExpense(s.ctx, bob.ID, older.ID)
	s.ErrorIs(err, store.ErrNotFound)

	s.ErrorIs(s.store.DeleteExpense(s.ctx, bob.ID, older.ID), store.ErrNotFound)
	s.Require().NoError(s.store.DeleteExpense(s.ctx, ann.ID, older.ID))
	s.ErrorIs(s.store.DeleteExpense(s.ctx, ann.ID, older.ID), store.ErrNotFound)
}

func (s *Suite) TestBackfillCategoryOrderIsIdempotent() {
	ann := s.user("ann@example.com")
	s.category(ann.ID, "A", 0, s.base)

	_, err := s.store.BackfillCategoryOrder(s.ctx)
	s.Require().NoError(err)
	n, err := s.store.BackfillCategoryOrder(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)
}
