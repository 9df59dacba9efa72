package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/dbx"
	"github.com/dsall/regvault/internal/models"
)

// SQLiteRepository stores snapshots as JSON blobs keyed by id. The record
// payload is opaque to SQL; counts and timestamp are duplicated in columns
// so listing does not deserialize payloads.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, s *models.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	query := `INSERT INTO snapshots (id, timestamp, payload, client_count, payment_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			payload = excluded.payload,
			client_count = excluded.client_count,
			payment_count = excluded.payment_count`
	_, err = r.db.ExecContext(ctx, query, s.ID, s.Timestamp, payload, s.ClientCount, s.PaymentCount)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Snapshot, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var s models.Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return &s, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Info, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, client_count, payment_count FROM snapshots ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var result []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.Timestamp, &info.ClientCount, &info.PaymentCount); err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM snapshots`)
	if err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}
