package clients

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE clients (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL,
  phone TEXT NOT NULL,
  category TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  last_updated TIMESTAMP NOT NULL,
  source_device TEXT NOT NULL DEFAULT '',
  synced INTEGER NOT NULL DEFAULT 0,
  synced_at TIMESTAMP,
  version INTEGER NOT NULL DEFAULT 1,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_date TIMESTAMP,
  obfuscated INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func testClient(id string) *models.Client {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Client{
		ID:            id,
		FirstName:     "Amina",
		LastName:      "Diop",
		Email:         "amina@example.com",
		Phone:         "+221701234567",
		Category:      models.CategorySingle,
		CreatedAt:     now,
		LastUpdated:   now,
		SourceDevice:  "dev-1",
		Version:       1,
		PaymentStatus: models.PaymentPending,
	}
}

func TestInsert_DuplicateID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, testClient("c1")))

	err := r.Insert(ctx, testClient("c1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConstraintViolation)
}

func TestUpsert_InsertThenReplace(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := testClient("c1")
	require.NoError(t, r.Upsert(ctx, c))

	c2 := c.Clone()
	c2.Email = "new@example.com"
	c2.Version = 2
	require.NoError(t, r.Upsert(ctx, &c2))

	got, err := r.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, int64(2), got.Version)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByID_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := testClient("c1")
	paid := time.Now().UTC().Truncate(time.Millisecond)
	c.PaymentStatus = models.PaymentPaid
	c.PaymentDate = &paid
	require.NoError(t, r.Insert(ctx, c))

	got, err := r.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.FirstName, got.FirstName)
	assert.Equal(t, c.Category, got.Category)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentDate)
	assert.WithinDuration(t, paid, *got.PaymentDate, time.Millisecond)
	assert.False(t, got.Synced)
	assert.Nil(t, got.SyncedAt)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := testClient("a")
	b := testClient("b")
	b.FirstName = "Moussa"
	b.Email = "moussa@other.org"
	require.NoError(t, r.Insert(ctx, a))
	require.NoError(t, r.Insert(ctx, b))

	got, err := r.Search(ctx, "AMINA")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got, err = r.Search(ctx, "other.org")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	// category is searchable too
	got, err = r.Search(ctx, "single")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetByCategory(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := testClient("a")
	b := testClient("b")
	b.Category = models.CategoryPair
	require.NoError(t, r.Insert(ctx, a))
	require.NoError(t, r.Insert(ctx, b))

	got, err := r.GetByCategory(ctx, models.CategoryPair)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestGetUnsynced_OrderedByUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	older := testClient("older")
	older.LastUpdated = older.LastUpdated.Add(-time.Hour)
	newer := testClient("newer")
	syncedOne := testClient("synced")
	syncedOne.Synced = true
	at := time.Now().UTC()
	syncedOne.SyncedAt = &at

	require.NoError(t, r.Insert(ctx, newer))
	require.NoError(t, r.Insert(ctx, older))
	require.NoError(t, r.Insert(ctx, syncedOne))

	got, err := r.GetUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "older", got[0].ID)
	assert.Equal(t, "newer", got[1].ID)
}

func TestMarkSynced(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, testClient("c1")))
	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, r.MarkSynced(ctx, "c1", at))

	got, err := r.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	require.NotNil(t, got.SyncedAt)
	assert.WithinDuration(t, at, *got.SyncedAt, time.Millisecond)

	assert.ErrorIs(t, r.MarkSynced(ctx, "missing", at), common.ErrNotFound)
}

func TestDeleteByID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, testClient("c1")))

	ok, err := r.DeleteByID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DeleteByID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearAndCount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, testClient("a")))
	require.NoError(t, r.Insert(ctx, testClient("b")))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, r.Clear(ctx))
	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
