package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/dbx"
	"github.com/dsall/regvault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const clientColumns = `id, first_name, last_name, email, phone, category,
	created_at, last_updated, source_device, synced, synced_at, version,
	payment_status, payment_date, obfuscated`

// mapErr translates driver failures into the shared error taxonomy so the
// recovery strategies upstream can match on errors.Is.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed"):
		return fmt.Errorf("%s: %w: %v", op, common.ErrConstraintViolation, err)
	case strings.Contains(msg, "disk is full") || strings.Contains(msg, "database or disk is full"):
		return fmt.Errorf("%s: %w: %v", op, common.ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, common.ErrStorageUnavailable, err)
	}
}

func (r *SQLiteRepository) Insert(ctx context.Context, c *models.Client) error {
	query := `INSERT INTO clients (` + clientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, args(c)...)
	return mapErr("insert client", err)
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.Client) error {
	query := `INSERT INTO clients (` + clientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			category = excluded.category,
			last_updated = excluded.last_updated,
			source_device = excluded.source_device,
			synced = excluded.synced,
			synced_at = excluded.synced_at,
			version = excluded.version,
			payment_status = excluded.payment_status,
			payment_date = excluded.payment_date,
			obfuscated = excluded.obfuscated`
	_, err := r.db.ExecContext(ctx, query, args(c)...)
	return mapErr("upsert client", err)
}

func args(c *models.Client) []any {
	return []any{
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, string(c.Category),
		c.CreatedAt, c.LastUpdated, c.SourceDevice, c.Synced, nullTime(c.SyncedAt),
		c.Version, string(c.PaymentStatus), nullTime(c.PaymentDate), c.Obfuscated,
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanClient(scan func(dest ...any) error) (*models.Client, error) {
	var c models.Client
	var category, status string
	var syncedAt, paymentDate sql.NullTime
	err := scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &category,
		&c.CreatedAt, &c.LastUpdated, &c.SourceDevice, &c.Synced, &syncedAt,
		&c.Version, &status, &paymentDate, &c.Obfuscated)
	if err != nil {
		return nil, err
	}
	c.Category = models.Category(category)
	c.PaymentStatus = models.PaymentStatus(status)
	if syncedAt.Valid {
		t := syncedAt.Time
		c.SyncedAt = &t
	}
	if paymentDate.Valid {
		t := paymentDate.Time
		c.PaymentDate = &t
	}
	return &c, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	c, err := scanClient(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) queryClients(ctx context.Context, query string, qargs ...any) ([]models.Client, error) {
	rows, err := r.db.QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, mapErr("query clients", err)
	}
	defer rows.Close()

	var result []models.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Client, error) {
	return r.queryClients(ctx, `SELECT `+clientColumns+` FROM clients`)
}

func (r *SQLiteRepository) GetByCategory(ctx context.Context, category models.Category) ([]models.Client, error) {
	return r.queryClients(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE category = ?`, string(category))
}

func (r *SQLiteRepository) Search(ctx context.Context, term string) ([]models.Client, error) {
	// LIKE is case-insensitive for ASCII in SQLite; lower() widens that to
	// the whole term for mixed-case input.
	pattern := "%" + strings.ToLower(term) + "%"
	return r.queryClients(ctx, `SELECT `+clientColumns+` FROM clients
		WHERE lower(first_name) LIKE ? OR lower(last_name) LIKE ?
			OR lower(email) LIKE ? OR lower(phone) LIKE ? OR lower(category) LIKE ?`,
		pattern, pattern, pattern, pattern, pattern)
}

func (r *SQLiteRepository) GetUnsynced(ctx context.Context) ([]models.Client, error) {
	return r.queryClients(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE synced = 0 ORDER BY last_updated`)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET synced = 1, synced_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return mapErr("mark synced", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark synced: rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return false, mapErr("delete client", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete client: rows affected: %w", err)
	}
	return ra > 0, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clients`)
	return mapErr("clear clients", err)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return 0, mapErr("count clients", err)
	}
	return n, nil
}
