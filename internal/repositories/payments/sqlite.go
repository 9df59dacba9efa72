package payments

import (
	"context"
	"fmt"

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

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO payments (id, client_id, status, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			status = excluded.status,
			timestamp = excluded.timestamp`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.ClientID, string(p.Status), p.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select payments: %w", err)
	}
	defer rows.Close()

	var result []models.Payment
	for rows.Next() {
		var p models.Payment
		var status string
		if err := rows.Scan(&p.ID, &p.ClientID, &status, &p.Timestamp); err != nil {
			return nil, err
		}
		p.Status = models.PaymentStatus(status)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Payment, error) {
	return r.query(ctx, `SELECT id, client_id, status, timestamp FROM payments`)
}

func (r *SQLiteRepository) GetByClientID(ctx context.Context, clientID string) ([]models.Payment, error) {
	return r.query(ctx,
		`SELECT id, client_id, status, timestamp FROM payments WHERE client_id = ?`, clientID)
}

func (r *SQLiteRepository) DeleteByClientID(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE client_id = ?`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM payments`)
	if err != nil {
		return fmt.Errorf("failed to clear payments: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return n, nil
}
