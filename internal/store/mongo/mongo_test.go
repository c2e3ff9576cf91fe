package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"spendlog/internal/core"
	"spendlog/internal/store"
	"spendlog/internal/store/storetest"
)

// TestMongoStore needs a reachable server, e.g.
// SPENDLOG_TEST_MONGO_URI=mongodb://localhost:27017 go test ./internal/store/mongo
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SPENDLOG_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SPENDLOG_TEST_MONGO_URI not set")
	}

	suite.Run(t, &storetest.Suite{
		NewStore: func() store.Store {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			s, err := Open(ctx, uri, "spendlog_test_"+uuid.NewString()[:8])
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.db.Drop(context.Background()) })
			return s
		},
	})
}

func TestExpenseDocRoundTrip(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	e := core.Expense{
		ID:          "e1",
		UserID:      "u1",
		Amount:      decimal.RequireFromString("12.34"),
		CategoryID:  "c1",
		Description: "Food expense",
		Date:        time.Date(2024, 6, 1, 20, 0, 0, 0, ny),
		CreatedAt:   time.Date(2024, 6, 1, 20, 1, 0, 0, ny),
	}

	doc, err := toExpenseDoc(e)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, doc.Date.Location())
	assert.Equal(t, "12.34", doc.Amount.String())

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded expenseDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	back, err := decoded.toExpense()
	require.NoError(t, err)
	assert.True(t, e.Amount.Equal(back.Amount))
	assert.True(t, e.Date.Equal(back.Date))
	assert.Equal(t, "c1", back.CategoryID)
}

func TestCategoryDocWithoutOrder(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: "c1"},
		{Key: "userId", Value: "u1"},
		{Key: "name", Value: "Legacy"},
		{Key: "color", Value: "#FF6B6B"},
	})
	require.NoError(t, err)

	var doc categoryDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Nil(t, doc.Order)
	assert.Equal(t, 0, doc.toCategory().Order)

	withOrder := toCategoryDoc(core.Category{ID: "c2", Order: 4})
	require.NotNil(t, withOrder.Order)
	assert.Equal(t, 4, *withOrder.Order)
}

func TestUncategorizedExpenseOmitsCategory(t *testing.T) {
	doc, err := toExpenseDoc(core.Expense{ID: "e1", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	_, lookupErr := bson.Raw(raw).LookupErr("categoryId")
	assert.Error(t, lookupErr)
}

func TestExpenseFilter(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "userId", Value: "u1"}}, expenseFilter("u1", store.ExpenseFilter{}))
	assert.Equal(t,
		bson.D{{Key: "userId", Value: "u1"}, {Key: "categoryId", Value: "c1"}},
		expenseFilter("u1", store.ExpenseFilter{CategoryID: "c1"}))
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(mongo.ErrNoDocuments), store.ErrNotFound)
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapError(dup), store.ErrConflict)
}
