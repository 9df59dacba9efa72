package syncer

import (
	"context"

	"github.com/dsall/regvault/internal/models"
)

// Deliverer is the remote delivery boundary. Implementations must be
// idempotent from the caller's perspective: redelivering an already
// acknowledged record must not create duplicates remote-side. Deliver must
// not block beyond a bounded timeout before failing.
//
// Every failure is treated as transient and retryable; a permanent
// rejection would have to be signalled explicitly by a future
// implementation.
type Deliverer interface {
	Deliver(ctx context.Context, records []models.Client) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, records []models.Client) error

func (f DelivererFunc) Deliver(ctx context.Context, records []models.Client) error {
	return f(ctx, records)
}
