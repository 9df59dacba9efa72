package snapshots

import (
	"context"
	"time"

	"github.com/dsall/regvault/internal/models"
)

// Info is snapshot metadata without the record payload, for cheap listing.
type Info struct {
	ID           string
	Timestamp    time.Time
	ClientCount  int
	PaymentCount int
}

// Repository describes persistence operations for backup snapshots.
type Repository interface {
	// Put stores a snapshot, replacing any existing one with the same id
	// (used by the reserved "latest" slot).
	Put(ctx context.Context, s *models.Snapshot) error

	// GetByID loads a full snapshot, or common.ErrSnapshotNotFound.
	GetByID(ctx context.Context, id string) (*models.Snapshot, error)

	// List returns metadata for every snapshot, newest first.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a snapshot by id.
	Delete(ctx context.Context, id string) error

	// Clear removes every snapshot.
	Clear(ctx context.Context) error
}
