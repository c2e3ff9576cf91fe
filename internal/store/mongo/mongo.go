// Package mongo implements the store ports on MongoDB.
//
// Category deletion runs in a multi-document transaction when the deployment
// is a replica set or sharded cluster. On a standalone server it deletes the
// expenses first and the category last, so a failure leaves the category in
// place and the delete can be retried.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

const (
	usersCollection      = "users"
	categoriesCollection = "categories"
	expensesCollection   = "expenses"
)

type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, verifies the connection and ensures indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	s.transactions = supportsTransactions(ctx, s.db)

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB",
		"database", database,
		"transactions", s.transactions)
	return s, nil
}

// supportsTransactions reports whether the server is a replica set member or mongos.
func supportsTransactions(ctx context.Context, db *mongo.Database) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		slog.WarnContext(ctx, "Could not detect MongoDB topology", "error", err)
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		categoriesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "order", Value: 1}}},
		},
		expensesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "categoryId", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) users() *mongo.Collection      { return s.db.Collection(usersCollection) }
func (s *Store) categories() *mongo.Collection { return s.db.Collection(categoriesCollection) }
func (s *Store) expenses() *mongo.Collection   { return s.db.Collection(expensesCollection) }

func (s *Store) CreateUser(ctx context.Context, u store.User) error {
	if _, err := s.users().InsertOne(ctx, toUserDoc(u)); err != nil {
		return fmt.Errorf("mongo couldn't insert user: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (core.UserProfile, error) {
	var doc userDoc
	if err := s.users().FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return core.UserProfile{}, fmt.Errorf("mongo couldn't find user: %w", mapError(err))
	}
	return doc.toUser().UserProfile, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	var doc userDoc
	if err := s.users().FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc); err != nil {
		return store.User{}, fmt.Errorf("mongo couldn't find user by email: %w", mapError(err))
	}
	return doc.toUser(), nil
}

func (s *Store) UpdateProfile(ctx context.Context, p core.UserProfile) error {
	res, err := s.users().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: p.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "firstName", Value: p.FirstName},
			{Key: "lastName", Value: p.LastName},
			{Key: "country", Value: p.Country},
			{Key: "currency", Value: p.Currency},
			{Key: "currencySymbol", Value: p.CurrencySymbol},
			{Key: "timezone", Value: p.Timezone},
		}}})
	if err != nil {
		return fmt.Errorf("mongo couldn't update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) error {
	if _, err := s.categories().InsertOne(ctx, toCategoryDoc(c)); err != nil {
		return fmt.Errorf("mongo couldn't insert category: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	var doc categoryDoc
	if err := s.categories().FindOne(ctx, ownedBy(userID, id)).Decode(&doc); err != nil {
		return core.Category{}, fmt.Errorf("mongo couldn't find category: %w", mapError(err))
	}
	return doc.toCategory(), nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	cursor, err := s.categories().Find(ctx,
		bson.D{{Key: "userId", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo couldn't list categories: %w", err)
	}
	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo couldn't decode categories: %w", err)
	}
	out := make([]core.Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCategory())
	}
	return out, nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	if !s.transactions {
		slog.WarnContext(ctx, "Deleting category without a transaction",
			"category_id", id)
		return s.deleteCategory(ctx, userID, id)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return 0, fmt.Errorf("mongo couldn't start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return s.deleteCategory(sc, userID, id)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (s *Store) deleteCategory(ctx context.Context, userID, id string) (int64, error) {
	if err := s.categories().FindOne(ctx, ownedBy(userID, id)).Err(); err != nil {
		return 0, fmt.Errorf("mongo couldn't find category: %w", mapError(err))
	}
	res, err := s.expenses().DeleteMany(ctx, bson.D{
		{Key: "userId", Value: userID},
		{Key: "categoryId", Value: id},
	})
	if err != nil {
		return 0, fmt.Errorf("mongo couldn't delete category expenses: %w", err)
	}
	if _, err := s.categories().DeleteOne(ctx, ownedBy(userID, id)); err != nil {
		return 0, fmt.Errorf("mongo couldn't delete category: %w", err)
	}
	return res.DeletedCount, nil
}

// UpdateCategoryOrders writes each order independently. Concurrent reorders of
// the same user interleave per category; the last write wins.
func (s *Store) UpdateCategoryOrders(ctx context.Context, userID string, orders []store.CategoryOrder) (int, error) {
	updated := 0
	for _, o := range orders {
		res, err := s.categories().UpdateOne(ctx, ownedBy(userID, o.CategoryID),
			bson.D{{Key: "$set", Value: bson.D{{Key: "order", Value: o.Order}}}})
		if err != nil {
			return updated, fmt.Errorf("mongo couldn't update order of %s: %w", o.CategoryID, err)
		}
		updated += int(res.MatchedCount)
	}
	return updated, nil
}

func (s *Store) UpdateCategoryColors(ctx context.Context, userID string, colors []store.CategoryColor) (int, error) {
	if len(colors) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(colors))
	for _, c := range colors {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(ownedBy(userID, c.CategoryID)).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "color", Value: c.Color}}}}))
	}
	res, err := s.categories().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("mongo couldn't update category colors: %w", err)
	}
	return int(res.MatchedCount), nil
}

func (s *Store) BackfillCategoryOrder(ctx context.Context) (int, error) {
	cursor, err := s.categories().Find(ctx,
		bson.D{{Key: "order", Value: bson.D{{Key: "$exists", Value: false}}}},
		options.Find().SetSort(bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return 0, fmt.Errorf("mongo couldn't find unordered categories: %w", err)
	}
	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("mongo couldn't decode unordered categories: %w", err)
	}

	next := map[string]int{}
	updated := 0
	for _, d := range docs {
		if _, ok := next[d.UserID]; !ok {
			start, err := s.nextOrder(ctx, d.UserID)
			if err != nil {
				return updated, err
			}
			next[d.UserID] = start
		}
		_, err := s.categories().UpdateOne(ctx,
			bson.D{{Key: "_id", Value: d.ID}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "order", Value: next[d.UserID]}}}})
		if err != nil {
			return updated, fmt.Errorf("mongo couldn't set order of %s: %w", d.ID, err)
		}
		next[d.UserID]++
		updated++
	}
	return updated, nil
}

func (s *Store) nextOrder(ctx context.Context, userID string) (int, error) {
	var doc categoryDoc
	err := s.categories().FindOne(ctx,
		bson.D{{Key: "userId", Value: userID}, {Key: "order", Value: bson.D{{Key: "$exists", Value: true}}}},
		options.FindOne().SetSort(bson.D{{Key: "order", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mongo couldn't find highest order: %w", err)
	}
	return *doc.Order + 1, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) error {
	doc, err := toExpenseDoc(e)
	if err != nil {
		return err
	}
	if _, err := s.expenses().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo couldn't insert expense: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	var doc expenseDoc
	if err := s.expenses().FindOne(ctx, ownedBy(userID, id)).Decode(&doc); err != nil {
		return core.Expense{}, fmt.Errorf("mongo couldn't find expense: %w", mapError(err))
	}
	return doc.toExpense()
}

func (s *Store) ListExpenses(ctx context.Context, userID string, f store.ExpenseFilter) ([]core.Expense, error) {
	cursor, err := s.expenses().Find(ctx, expenseFilter(userID, f),
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo couldn't list expenses: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "mongo couldn't close cursor", "error", err)
		}
	}()

	out := make([]core.Expense, 0)
	for cursor.Next(ctx) {
		var doc expenseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo couldn't decode expense: %w", err)
		}
		e, err := doc.toExpense()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor err in ListExpenses: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := s.expenses().DeleteOne(ctx, ownedBy(userID, id))
	if err != nil {
		return fmt.Errorf("mongo couldn't delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func ownedBy(userID, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "userId", Value: userID}}
}

func expenseFilter(userID string, f store.ExpenseFilter) bson.D {
	filter := bson.D{{Key: "userId", Value: userID}}
	if f.CategoryID != "" {
		filter = append(filter, bson.E{Key: "categoryId", Value: f.CategoryID})
	}
	return filter
}

func mapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	default:
		return err
	}
}
