// Package schema owns the lifecycle of the on-disk store: opening the
// SQLite database, running goose migrations up to the version the code
// expects, and the destructive reset used to recover from an
// irreconcilable version conflict.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/migrations"
)

// ExpectedVersion is the migration version this build of the code requires.
// It must match the highest numbered file in internal/migrations.
const ExpectedVersion int64 = 4

// requiredTables is the object set this build cannot run without. A store
// whose bookkeeping claims a newer version must still contain these to
// load forward-compatibly.
var requiredTables = []string{"clients", "payments", "snapshots", "metadata"}

// Handle is an open, migrated database. It is exclusively owned by the
// context that opened it; close it when done.
type Handle struct {
	DB      *sql.DB
	Path    string
	Version int64

	// ResetOccurred is true when Open had to destructively reset the
	// store to recover from a version conflict. Surfaced in diagnostics.
	ResetOccurred bool
}

// Close releases the underlying database.
func (h *Handle) Close() error {
	if h == nil || h.DB == nil {
		return nil
	}
	return h.DB.Close()
}

func dsn(path string) string {
	// busy_timeout lets interleaved writers from other contexts retry
	// instead of failing immediately with SQLITE_BUSY.
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

var (
	gooseSetupOnce sync.Once
	gooseSetupErr  error
)

// gooseSetup points goose at the embedded migrations and the sqlite3
// dialect. It must run before any goose call, including the stored-version
// query: goose's package-level store defaults to the Postgres dialect.
func gooseSetup() error {
	gooseSetupOnce.Do(func() {
		goose.SetBaseFS(migrations.Migrations)
		if err := goose.SetDialect("sqlite3"); err != nil {
			gooseSetupErr = fmt.Errorf("failed to set goose dialect: %w", err)
		}
	})
	return gooseSetupErr
}

func runMigrations(ctx context.Context, db *sql.DB, target int64) error {
	return goose.UpToContext(ctx, db, ".", target)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// classifyMigrationErr maps a migration failure onto the error taxonomy.
// SQLite failures keep their nature: contention blocks, a full disk is a
// quota problem, and any other failure leaves the store intact and
// unavailable. A version conflict is never inferred from an error here;
// it is detected from the recorded version itself, so an unclassified
// failure can never escalate into the destructive reset.
func classifyMigrationErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", common.ErrSchemaBlocked, err)
		case sqlite3.SQLITE_FULL:
			return fmt.Errorf("%w: %v", common.ErrQuotaExceeded, err)
		default:
			return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
	}
	if isBusy(err) {
		return fmt.Errorf("%w: %v", common.ErrSchemaBlocked, err)
	}
	if strings.Contains(err.Error(), "disk is full") {
		return fmt.Errorf("%w: %v", common.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
}

func hasRequiredTables(ctx context.Context, db *sql.DB) (bool, error) {
	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// Open opens (creating if necessary) the database at path and brings the
// schema up to expectedVersion.
//
// A stored version below expectedVersion triggers idempotent, additive
// migrations. A stored version above expectedVersion is tolerated as long
// as the objects this build needs are present (forward compatibility);
// when they are not, the bookkeeping is irreconcilable and Open fails
// with common.ErrVersionConflict. Open fails with
// common.ErrSchemaUnavailable when the file cannot be opened and with
// common.ErrSchemaBlocked when another live handle prevents the upgrade.
func Open(ctx context.Context, path string, expectedVersion int64) (*Handle, error) {
	if err := gooseSetup(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSchemaUnavailable, err)
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSchemaUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrSchemaUnavailable, err)
	}

	stored, err := storedVersion(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrSchemaUnavailable, err)
	}

	if stored > expectedVersion {
		ok, err := hasRequiredTables(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", common.ErrSchemaUnavailable, err)
		}
		if !ok {
			_ = db.Close()
			return nil, fmt.Errorf("%w: store records version %d but lacks objects required by version %d",
				common.ErrVersionConflict, stored, expectedVersion)
		}
		return &Handle{DB: db, Path: path, Version: stored}, nil
	}

	if stored < expectedVersion {
		if err := runMigrations(ctx, db, expectedVersion); err != nil {
			_ = db.Close()
			return nil, classifyMigrationErr(err)
		}
		stored, err = storedVersion(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", common.ErrSchemaUnavailable, err)
		}
		if stored != expectedVersion {
			// The recorded state references migrations this build does not
			// carry, so the target can never be reached.
			_ = db.Close()
			return nil, fmt.Errorf("%w: migrated to version %d, expected %d",
				common.ErrVersionConflict, stored, expectedVersion)
		}
	}

	return &Handle{DB: db, Path: path, Version: stored}, nil
}

// OpenOrReset opens the store and, if the open fails with a version
// conflict, destructively resets the database file and opens it fresh.
// Any other failure class (blocked, quota, storage) propagates untouched:
// the reset is lossy and reserved for bookkeeping this build can never
// reconcile. The returned handle flags that a reset happened so callers
// can report it.
func OpenOrReset(ctx context.Context, path string, expectedVersion int64) (*Handle, error) {
	h, err := Open(ctx, path, expectedVersion)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, common.ErrVersionConflict) {
		return nil, err
	}

	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("%w: reset failed: %v", common.ErrStorageUnavailable, rmErr)
		}
	}
	h, err = Open(ctx, path, expectedVersion)
	if err != nil {
		return nil, err
	}
	h.ResetOccurred = true
	return h, nil
}

func storedVersion(ctx context.Context, db *sql.DB) (int64, error) {
	return goose.GetDBVersionContext(ctx, db)
}
