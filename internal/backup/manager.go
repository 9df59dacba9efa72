// Package backup implements periodic and event-triggered snapshotting of
// the record store into self-contained backup objects, with listing,
// restore and oldest-first pruning.
package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dsall/regvault/internal/logging"
	"github.com/dsall/regvault/internal/metrics"
	"github.com/dsall/regvault/internal/models"
	"github.com/dsall/regvault/internal/repositories/clients"
	"github.com/dsall/regvault/internal/repositories/payments"
	"github.com/dsall/regvault/internal/repositories/snapshots"
)

// DefaultKeep is how many dated snapshots Prune retains by default. The
// reserved "latest" slot is never pruned.
const DefaultKeep = 5

// DefaultInterval is how often the "latest" slot is refreshed.
const DefaultInterval = 30 * time.Second

// Restorer replays snapshot records back through the record store with
// last-writer-wins semantics. Implemented by the store service; injected
// late to break the construction cycle.
type Restorer interface {
	RestoreClient(ctx context.Context, c models.Client) error
	RestorePayment(ctx context.Context, p models.Payment) error
}

// Manager owns the backup lifecycle.
type Manager struct {
	snaps    snapshots.Repository
	clients  clients.Repository
	payments payments.Repository
	tracker  *metrics.Tracker
	log      logging.Logger

	interval time.Duration
	keep     int

	mu       sync.Mutex
	restorer Restorer
	lastAt   time.Time

	saved chan struct{}
}

// NewManager wires a backup manager over the given repositories.
func NewManager(snaps snapshots.Repository, cl clients.Repository, pm payments.Repository,
	tracker *metrics.Tracker, log logging.Logger, interval time.Duration, keep int) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Manager{
		snaps:    snaps,
		clients:  cl,
		payments: pm,
		tracker:  tracker,
		log:      log,
		interval: interval,
		keep:     keep,
		saved:    make(chan struct{}, 1),
	}
}

// SetRestorer injects the replay target used by Restore.
func (m *Manager) SetRestorer(r Restorer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restorer = r
}

// LastBackupAt returns when a snapshot was last written, zero if never.
func (m *Manager) LastBackupAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAt
}

func (m *Manager) collect(ctx context.Context, id string) (*models.Snapshot, error) {
	cl, err := m.clients.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect clients: %w", err)
	}
	pm, err := m.payments.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect payments: %w", err)
	}
	return &models.Snapshot{
		ID:           id,
		Timestamp:    time.Now().UTC(),
		Clients:      cl,
		Payments:     pm,
		ClientCount:  len(cl),
		PaymentCount: len(pm),
	}, nil
}

func (m *Manager) write(ctx context.Context, s *models.Snapshot) error {
	if err := m.snaps.Put(ctx, s); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastAt = s.Timestamp
	m.mu.Unlock()
	m.tracker.RecordBackupCreated()
	return nil
}

// CreateSnapshot writes a dated snapshot and returns it.
func (m *Manager) CreateSnapshot(ctx context.Context) (*models.Snapshot, error) {
	id := fmt.Sprintf("backup_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	s, err := m.collect(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.write(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RefreshLatest overwrites the reserved "latest" slot with current state.
func (m *Manager) RefreshLatest(ctx context.Context) error {
	s, err := m.collect(ctx, models.SnapshotLatestID)
	if err != nil {
		return err
	}
	return m.write(ctx, s)
}

// List returns snapshot metadata, newest first.
func (m *Manager) List(ctx context.Context) ([]snapshots.Info, error) {
	return m.snaps.List(ctx)
}

// Restore replays every record of the snapshot through the record store.
// Records already newer locally win (last-writer-wins per id); records not
// present in the snapshot are left alone.
func (m *Manager) Restore(ctx context.Context, id string) error {
	m.mu.Lock()
	r := m.restorer
	m.mu.Unlock()
	if r == nil {
		return fmt.Errorf("no restorer configured")
	}

	s, err := m.snaps.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for i := range s.Clients {
		if err := r.RestoreClient(ctx, s.Clients[i]); err != nil {
			return fmt.Errorf("failed to restore client %s: %w", s.Clients[i].ID, err)
		}
	}
	for i := range s.Payments {
		if err := r.RestorePayment(ctx, s.Payments[i]); err != nil {
			return fmt.Errorf("failed to restore payment %s: %w", s.Payments[i].ID, err)
		}
	}
	m.tracker.RecordBackupRestored()
	m.log.Info(ctx, "snapshot restored", "id", id,
		"clients", s.ClientCount, "payments", s.PaymentCount)
	return nil
}

// Prune deletes the oldest dated snapshots beyond keep. Invoked
// opportunistically during quota-exceeded recovery.
func (m *Manager) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = m.keep
	}
	infos, err := m.snaps.List(ctx)
	if err != nil {
		return err
	}

	var dated []snapshots.Info
	for _, info := range infos {
		if info.ID == models.SnapshotLatestID {
			continue
		}
		dated = append(dated, info)
	}
	if len(dated) <= keep {
		return nil
	}
	sort.Slice(dated, func(i, j int) bool { return dated[i].Timestamp.Before(dated[j].Timestamp) })

	for _, victim := range dated[:len(dated)-keep] {
		if err := m.snaps.Delete(ctx, victim.ID); err != nil {
			return err
		}
		m.log.Info(ctx, "pruned snapshot", "id", victim.ID)
	}
	return nil
}

// NotifySaved signals that a record was saved; the run loop refreshes the
// "latest" slot soon after. Signals are coalesced.
func (m *Manager) NotifySaved() {
	select {
	case m.saved <- struct{}{}:
	default:
	}
}

// Flush performs a final best-effort refresh of the "latest" slot, used at
// shutdown.
func (m *Manager) Flush(ctx context.Context) {
	if err := m.RefreshLatest(ctx); err != nil {
		m.log.Error(ctx, "final backup flush failed", "error", err)
	}
}

// Run refreshes the "latest" slot on a fixed interval and after saves,
// until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-m.saved:
		case <-ctx.Done():
			return
		}
		if err := m.RefreshLatest(ctx); err != nil {
			m.log.Error(ctx, "backup refresh failed", "error", err)
		}
	}
}
