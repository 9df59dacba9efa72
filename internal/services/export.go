package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/models"
)

// Export produces the full-fidelity interchange envelope. Sensitive fields
// are revealed so the file can be imported on a device holding a different
// secret.
func (s *Store) Export(ctx context.Context) (*models.Export, error) {
	cl, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	pm, err := s.payments.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	stats := models.ExportStats{TotalClients: len(cl)}
	for _, c := range cl {
		if c.Synced {
			stats.Synced++
		} else {
			stats.Unsynced++
		}
	}

	return &models.Export{
		ExportDate: time.Now().UTC(),
		Version:    models.ExportFormatVersion,
		DeviceID:   s.deviceID,
		Clients:    cl,
		Payments:   pm,
		Stats:      stats,
	}, nil
}

// Import replays every client and payment of the envelope through the
// store with last-writer-wins semantics per id, returning how many client
// records were actually applied. Importing a snapshot identical to current
// state is a no-op.
func (s *Store) Import(ctx context.Context, exp *models.Export) (int, error) {
	applied := 0
	for i := range exp.Clients {
		c := exp.Clients[i]
		local, err := s.clients.GetByID(ctx, c.ID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return applied, fmt.Errorf("import client %s: %w", c.ID, err)
		}
		if local != nil && !c.LastUpdated.After(local.LastUpdated) {
			continue
		}
		if err := s.ApplyUpsert(ctx, c); err != nil {
			return applied, fmt.Errorf("import client %s: %w", c.ID, err)
		}
		applied++
	}
	for i := range exp.Payments {
		if err := s.payments.Upsert(ctx, &exp.Payments[i]); err != nil {
			return applied, fmt.Errorf("import payment %s: %w", exp.Payments[i].ID, err)
		}
	}
	if applied > 0 {
		s.log.Info(ctx, "import applied records", "count", applied)
	}
	return applied, nil
}
