package services

import (
	"context"
	"errors"
	"time"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/models"
)

// The methods below implement the store slice consumed by the sync engine
// and the backup restorer. They operate on the persisted (possibly
// obfuscated) representation; the at-rest transform travels with the
// record across the store boundary.

// GetUnsynced returns records with synced=false, oldest update first.
func (s *Store) GetUnsynced(ctx context.Context) ([]models.Client, error) {
	return s.clients.GetUnsynced(ctx)
}

// MarkSynced persists the acknowledgment of a delivered record.
func (s *Store) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return s.clients.MarkSynced(ctx, id, at)
}

// GetByID returns the stored form of a record, or common.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Client, error) {
	return s.clients.GetByID(ctx, id)
}

// ApplyUpsert persists an externally originated record as-is, applying the
// at-rest transform to any untagged sensitive fields.
func (s *Store) ApplyUpsert(ctx context.Context, c models.Client) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stored := s.obf.Transform(c)
	if err := s.clients.Upsert(ctx, &stored); err != nil {
		return err
	}
	if err := s.cache.Put(stored); err != nil {
		s.log.Error(ctx, "fallback cache write failed", "id", stored.ID, "error", err)
	}
	return nil
}

// RestoreClient replays one snapshot record with last-writer-wins
// semantics: the snapshot copy is applied only when it is strictly newer
// than local state or local state is absent.
func (s *Store) RestoreClient(ctx context.Context, c models.Client) error {
	local, err := s.clients.GetByID(ctx, c.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if local != nil && !c.LastUpdated.After(local.LastUpdated) {
		return nil
	}
	return s.ApplyUpsert(ctx, c)
}

// RestorePayment replays one snapshot payment.
func (s *Store) RestorePayment(ctx context.Context, p models.Payment) error {
	return s.payments.Upsert(ctx, &p)
}
