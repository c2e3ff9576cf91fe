package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendlog/internal/core"
	"spendlog/internal/store"
	"spendlog/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func() store.Store {
			repo, err := Open(filepath.Join(t.TempDir(), "spendlog.db"))
			require.NoError(t, err)
			return repo
		},
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spendlog.db")

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = Open(path)
	require.NoError(t, err)
	defer repo.Close()
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestBackfillCategoryOrder(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(filepath.Join(t.TempDir(), "spendlog.db"))
	require.NoError(t, err)
	defer repo.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateUser(ctx, store.User{
		UserProfile: core.UserProfile{ID: "u1", Email: "a@example.com", Currency: "USD", Timezone: "UTC", CreatedAt: base},
	}))
	require.NoError(t, repo.CreateCategory(ctx, core.Category{ID: "kept", UserID: "u1", Name: "Kept", Color: "#FF6B6B", Order: 3, CreatedAt: base}))

	// rows written before the order column existed
	for i, id := range []string{"late", "early"} {
		_, err := repo.db.ExecContext(ctx,
			`INSERT INTO categories (id, user_id, name, color, sort_order, created_at) VALUES (?, 'u1', ?, '#4ECDC4', NULL, ?)`,
			id, id, formatTime(base.Add(time.Duration(2-i)*time.Hour)))
		require.NoError(t, err)
	}

	n, err := repo.BackfillCategoryOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"kept", "early", "late"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, []int{3, 4, 5}, []int{list[0].Order, list[1].Order, list[2].Order})

	var nulls int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE sort_order IS NULL`).Scan(&nulls))
	assert.Zero(t, nulls)
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(sql.ErrNoRows), store.ErrNotFound)
}

func TestTimeRoundTrip(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	in := time.Date(2024, 6, 1, 22, 15, 0, 123, ny)

	out, err := parseTime(formatTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Len(t, formatTime(in), len(timeLayout))
}
