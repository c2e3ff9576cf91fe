package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

type userDoc struct {
	ID             string    `bson:"_id"`
	Email          string    `bson:"email"`
	PasswordHash   string    `bson:"passwordHash"`
	FirstName      string    `bson:"firstName"`
	LastName       string    `bson:"lastName"`
	Country        string    `bson:"country"`
	Currency       string    `bson:"currency"`
	CurrencySymbol string    `bson:"currencySymbol"`
	Timezone       string    `bson:"timezone"`
	CreatedAt      time.Time `bson:"createdAt"`
}

type categoryDoc struct {
	ID     string `bson:"_id"`
	UserID string `bson:"userId"`
	Name   string `bson:"name"`
	Color  string `bson:"color"`
	// nil for documents written before categories were orderable
	Order     *int      `bson:"order,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

type expenseDoc struct {
	ID          string               `bson:"_id"`
	UserID      string               `bson:"userId"`
	CategoryID  string               `bson:"categoryId,omitempty"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Description string               `bson:"description"`
	Date        time.Time            `bson:"date"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

func toUserDoc(u store.User) userDoc {
	return userDoc{
		ID:             u.ID,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Country:        u.Country,
		Currency:       u.Currency,
		CurrencySymbol: u.CurrencySymbol,
		Timezone:       u.Timezone,
		CreatedAt:      u.CreatedAt.UTC(),
	}
}

func (d userDoc) toUser() store.User {
	return store.User{
		UserProfile: core.UserProfile{
			ID:             d.ID,
			Email:          d.Email,
			FirstName:      d.FirstName,
			LastName:       d.LastName,
			Country:        d.Country,
			Currency:       d.Currency,
			CurrencySymbol: d.CurrencySymbol,
			Timezone:       d.Timezone,
			CreatedAt:      d.CreatedAt,
		},
		PasswordHash: d.PasswordHash,
	}
}

func toCategoryDoc(c core.Category) categoryDoc {
	order := c.Order
	return categoryDoc{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Color:     c.Color,
		Order:     &order,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func (d categoryDoc) toCategory() core.Category {
	c := core.Category{
		ID:        d.ID,
		UserID:    d.UserID,
		Name:      d.Name,
		Color:     d.Color,
		CreatedAt: d.CreatedAt,
	}
	if d.Order != nil {
		c.Order = *d.Order
	}
	return c
}

func toExpenseDoc(e core.Expense) (expenseDoc, error) {
	amount, err := primitive.ParseDecimal128(e.Amount.String())
	if err != nil {
		return expenseDoc{}, fmt.Errorf("encode amount %s: %w", e.Amount, err)
	}
	return expenseDoc{
		ID:          e.ID,
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		Amount:      amount,
		Description: e.Description,
		Date:        e.Date.UTC(),
		CreatedAt:   e.CreatedAt.UTC(),
	}, nil
}

func (d expenseDoc) toExpense() (core.Expense, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode amount %s: %w", d.Amount, err)
	}
	return core.Expense{
		ID:          d.ID,
		UserID:      d.UserID,
		CategoryID:  d.CategoryID,
		Amount:      amount,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   d.CreatedAt,
	}, nil
}
