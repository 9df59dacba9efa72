package payments

import (
	"context"

	"github.com/dsall/regvault/internal/models"
)

// Repository describes persistence operations for payment records.
type Repository interface {
	// Upsert inserts a payment or replaces an existing one by id.
	Upsert(ctx context.Context, p *models.Payment) error

	// GetAll returns every payment in store order.
	GetAll(ctx context.Context) ([]models.Payment, error)

	// GetByClientID returns the payments associated with one client.
	GetByClientID(ctx context.Context, clientID string) ([]models.Payment, error)

	// DeleteByClientID removes all payments of a client.
	DeleteByClientID(ctx context.Context, clientID string) error

	// Clear removes every payment.
	Clear(ctx context.Context) error

	// Count returns the number of stored payments.
	Count(ctx context.Context) (int, error)
}
