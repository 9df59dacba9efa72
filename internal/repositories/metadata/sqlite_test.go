package metadata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key TEXT PRIMARY KEY,
  value BLOB
);
`)
	require.NoError(t, err)

	return db
}

func TestGetSet_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	v, err := r.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.Set(ctx, "k", []byte("v1")))
	require.NoError(t, r.Set(ctx, "k", []byte("v2")))

	v, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, r.Delete(ctx, "k"))
	v, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEnsureDeviceID_PersistsFirstGenerated(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	calls := 0
	generate := func() (string, error) {
		calls++
		return "host-a1b2c3", nil
	}

	id, err := EnsureDeviceID(ctx, r, generate)
	require.NoError(t, err)
	assert.Equal(t, "host-a1b2c3", id)
	assert.Equal(t, 1, calls)

	// Second call returns the stored id without generating again.
	id2, err := EnsureDeviceID(ctx, r, generate)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, 1, calls)
}

func TestEnsureDeviceID_GeneratorError(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := EnsureDeviceID(context.Background(), r, func() (string, error) {
		return "", errors.New("no entropy")
	})
	require.Error(t, err)
}
