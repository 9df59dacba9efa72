package clients

import (
	"context"
	"time"

	"github.com/dsall/regvault/internal/models"
)

// Repository describes CRUD and query operations for client records.
// Implementations are typically backed by a local SQLite database.
type Repository interface {
	// Insert adds a new record. It fails with common.ErrConstraintViolation
	// when the id is already taken.
	Insert(ctx context.Context, c *models.Client) error

	// Upsert inserts a new record or replaces the existing one by id in a
	// single atomic write.
	Upsert(ctx context.Context, c *models.Client) error

	// GetByID returns a record, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Client, error)

	// GetAll returns every record in store order.
	GetAll(ctx context.Context) ([]models.Client, error)

	// GetByCategory returns records of one category.
	GetByCategory(ctx context.Context, category models.Category) ([]models.Client, error)

	// Search performs case-insensitive substring matching over name, email,
	// phone and category fields.
	Search(ctx context.Context, term string) ([]models.Client, error)

	// GetUnsynced returns records with synced=false, oldest update first.
	GetUnsynced(ctx context.Context) ([]models.Client, error)

	// MarkSynced flips a record to synced and stamps syncedAt.
	MarkSynced(ctx context.Context, id string, at time.Time) error

	// DeleteByID removes a record, reporting whether it existed.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
