// Package sqlite implements the store ports on an embedded SQLite database.
//
// Times are stored as fixed-width UTC text so lexical order matches time order.
// Amounts are stored as decimal text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

// Open creates the database file if needed, applies migrations and returns a ready repository.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time keeps SQLITE_BUSY away from concurrent requests
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn in a transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u store.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, country, currency, currency_symbol, timezone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Country,
		u.Currency, u.CurrencySymbol, u.Timezone, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", mapError(err))
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID)
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, country, currency, currency_symbol, timezone, created_at`

func (r *Repository) GetUser(ctx context.Context, id string) (core.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	return u.UserProfile, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return store.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, p core.UserProfile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = ?, last_name = ?, country = ?, currency = ?, currency_symbol = ?, timezone = ?
		WHERE id = ?`,
		p.FirstName, p.LastName, p.Country, p.Currency, p.CurrencySymbol, p.Timezone, p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, color, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Color, c.Order, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", mapError(err))
	}
	return nil
}

const categoryColumns = `id, user_id, name, color, sort_order, created_at`

func (r *Repository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ?
		ORDER BY sort_order IS NULL, sort_order, created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes the category and its expenses in one transaction.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	var deleted int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
		if err != nil {
			return mapError(err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM expenses WHERE category_id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("delete category expenses: %w", err)
		}
		deleted, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete category %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Category deleted from SQLite",
		"category_id", id,
		"deleted_expenses", deleted)
	return deleted, nil
}

func (r *Repository) UpdateCategoryOrders(ctx context.Context, userID string, orders []store.CategoryOrder) (int, error) {
	updated := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, o := range orders {
			res, err := tx.ExecContext(ctx,
				`UPDATE categories SET sort_order = ? WHERE id = ? AND user_id = ?`,
				o.Order, o.CategoryID, userID)
			if err != nil {
				return fmt.Errorf("update order of %s: %w", o.CategoryID, err)
			}
			n, _ := res.RowsAffected()
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *Repository) UpdateCategoryColors(ctx context.Context, userID string, colors []store.CategoryColor) (int, error) {
	updated := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range colors {
			res, err := tx.ExecContext(ctx,
				`UPDATE categories SET color = ? WHERE id = ? AND user_id = ?`,
				c.Color, c.CategoryID, userID)
			if err != nil {
				return fmt.Errorf("update color of %s: %w", c.CategoryID, err)
			}
			n, _ := res.RowsAffected()
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// BackfillCategoryOrder numbers unordered categories after each user's highest existing order.
func (r *Repository) BackfillCategoryOrder(ctx context.Context) (int, error) {
	updated := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT c.id, c.user_id,
			       (SELECT COALESCE(MAX(o.sort_order), -1) FROM categories o WHERE o.user_id = c.user_id)
			FROM categories c
			WHERE c.sort_order IS NULL
			ORDER BY c.user_id, c.created_at, c.id`)
		if err != nil {
			return fmt.Errorf("select unordered categories: %w", err)
		}

		type pending struct {
			id    string
			order int
		}
		var todo []pending
		next := map[string]int{}
		for rows.Next() {
			var id, userID string
			var maxOrder int
			if err := rows.Scan(&id, &userID, &maxOrder); err != nil {
				rows.Close()
				return err
			}
			if _, ok := next[userID]; !ok {
				next[userID] = maxOrder + 1
			}
			todo = append(todo, pending{id: id, order: next[userID]})
			next[userID]++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, p := range todo {
			if _, err := tx.ExecContext(ctx,
				`UPDATE categories SET sort_order = ? WHERE id = ?`, p.order, p.id); err != nil {
				return fmt.Errorf("set order of %s: %w", p.id, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("backfill category order: %w", err)
	}
	return updated, nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, category_id, amount, description, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, nullString(e.CategoryID), e.Amount.String(), e.Description,
		formatTime(e.Date), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", mapError(err))
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"expense_id", e.ID,
		"amount", e.Amount.String(),
		"category_id", e.CategoryID)
	return nil
}

const expenseColumns = `id, user_id, category_id, amount, description, date, created_at`

func (r *Repository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, userID string, f store.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if f.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	query += ` ORDER BY date DESC, created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (store.User, error) {
	var u store.User
	var created string
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Country,
		&u.Currency, &u.CurrencySymbol, &u.Timezone, &created)
	if err != nil {
		return store.User{}, mapError(err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return store.User{}, err
	}
	return u, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var c core.Category
	var order sql.NullInt64
	var created string
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &order, &created); err != nil {
		return core.Category{}, mapError(err)
	}
	c.Order = int(order.Int64)
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var e core.Expense
	var category sql.NullString
	var amount, date, created string
	if err := s.Scan(&e.ID, &e.UserID, &category, &amount, &e.Description, &date, &created); err != nil {
		return core.Expense{}, mapError(err)
	}
	e.CategoryID = category.String

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if e.Date, err = parseTime(date); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}
	return err
}
