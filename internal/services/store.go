// Package services wires the persistence, fallback, backup, obfuscation
// and sync components behind the record-store contract the rest of the
// program calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dsall/regvault/internal/backup"
	"github.com/dsall/regvault/internal/bus"
	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/dbx"
	"github.com/dsall/regvault/internal/fallback"
	"github.com/dsall/regvault/internal/logging"
	"github.com/dsall/regvault/internal/metrics"
	"github.com/dsall/regvault/internal/models"
	"github.com/dsall/regvault/internal/obfusc"
	"github.com/dsall/regvault/internal/repositories/clients"
	"github.com/dsall/regvault/internal/repositories/payments"
	"github.com/dsall/regvault/internal/schema"
)

// Syncer is the slice of the sync engine the store calls into. Injected
// after construction because the engine itself is built over the store.
type Syncer interface {
	Enqueue(ctx context.Context, record models.Client)
	QueueDepth() int
	IsSyncing() bool
}

// Store is the record store: every other component reads and writes
// client and payment data through it.
type Store struct {
	handle   *schema.Handle
	clients  clients.Repository
	payments payments.Repository
	cache    *fallback.Cache
	backups  *backup.Manager
	obf      *obfusc.Layer
	changes  *bus.Bus
	tracker  *metrics.Tracker
	log      logging.Logger
	deviceID string

	// writeMu serializes writers going through this handle so LastUpdated
	// stamping stays strictly monotonic per record.
	writeMu sync.Mutex

	engineMu sync.Mutex
	engine   Syncer
}

// NewStore assembles a record store over an open schema handle.
func NewStore(handle *schema.Handle, cl clients.Repository, pm payments.Repository,
	cache *fallback.Cache, backups *backup.Manager, obf *obfusc.Layer,
	changes *bus.Bus, tracker *metrics.Tracker, log logging.Logger, deviceID string) *Store {
	return &Store{
		handle:   handle,
		clients:  cl,
		payments: pm,
		cache:    cache,
		backups:  backups,
		obf:      obf,
		changes:  changes,
		tracker:  tracker,
		log:      log,
		deviceID: deviceID,
	}
}

// SetSyncer injects the sync engine once it exists.
func (s *Store) SetSyncer(e Syncer) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.engine = e
}

func (s *Store) syncer() Syncer {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.engine
}

// DeviceID returns the originating device identifier stamped on records.
func (s *Store) DeviceID() string {
	return s.deviceID
}

var categoryPrefix = map[models.Category]string{
	models.CategorySingle: "UNI",
	models.CategoryPair:   "DUO",
}

// GenerateID builds a collision-resistant identifier from the category
// prefix, the current time and a random suffix.
func GenerateID(category models.Category) string {
	prefix, ok := categoryPrefix[category]
	if !ok {
		prefix = "UNI"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

// Save persists a client record through a single atomic write, assigning
// an id and defaults when absent, and always advancing LastUpdated.
//
// A successful save also feeds the fallback cache, notifies the backup
// manager, publishes a change message and enqueues the record for sync.
// Delivery failures are never surfaced here: the save contract is
// "durably persisted locally".
func (s *Store) Save(ctx context.Context, rec *models.Client) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	generated := false
	if rec.ID == "" {
		rec.ID = GenerateID(rec.Category)
		generated = true
	}

	var prev *models.Client
	if !generated {
		existing, err := s.clients.GetByID(ctx, rec.ID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			s.tracker.RecordSave(false)
			return "", err
		}
		prev = existing
	}

	// Defaults for missing optional fields.
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.PaymentStatus == "" {
		rec.PaymentStatus = models.PaymentPending
	}
	if rec.SourceDevice == "" {
		rec.SourceDevice = s.deviceID
	}

	if prev != nil {
		rec.CreatedAt = prev.CreatedAt
		rec.Version = prev.Version + 1
		// A mutation invalidates the previous acknowledgment.
		rec.Synced = false
		rec.SyncedAt = nil
		rec.LastUpdated = now
		if !rec.LastUpdated.After(prev.LastUpdated) {
			rec.LastUpdated = prev.LastUpdated.Add(time.Millisecond)
		}
	} else {
		if rec.Version == 0 {
			rec.Version = 1
		}
		rec.LastUpdated = now
	}

	stored := s.obf.Transform(*rec)

	if err := s.persist(ctx, &stored, prev != nil, generated); err != nil {
		s.tracker.RecordSave(false)
		// Last line of defense: park the record in the fallback cache so
		// it survives the primary store failure.
		if cacheErr := s.cache.Put(stored); cacheErr != nil {
			s.log.Error(ctx, "fallback cache write failed", "id", stored.ID, "error", cacheErr)
		}
		return "", err
	}
	rec.ID = stored.ID
	s.tracker.RecordSave(true)

	s.afterSave(ctx, stored, prev != nil)
	return rec.ID, nil
}

// persist runs the atomic write with the per-failure-kind recovery
// strategies: id regeneration on constraint violation, backup pruning plus
// a bounded retry on quota exhaustion.
func (s *Store) persist(ctx context.Context, stored *models.Client, update, generated bool) error {
	write := func(ctx context.Context) error {
		var err error
		if update {
			err = s.clients.Upsert(ctx, stored)
		} else {
			err = s.clients.Insert(ctx, stored)
		}
		if err == nil {
			return nil
		}

		if errors.Is(err, common.ErrConstraintViolation) && generated {
			// Freshly generated id collided: regenerate once and retry.
			stored.ID = GenerateID(stored.Category)
			generated = false
			return retry.RetryableError(err)
		}
		if errors.Is(err, common.ErrQuotaExceeded) {
			s.log.Warn(ctx, "storage quota exceeded, pruning backups", "id", stored.ID)
			if pruneErr := s.backups.Prune(ctx, 0); pruneErr != nil {
				s.log.Error(ctx, "backup pruning failed", "error", pruneErr)
			}
			return retry.RetryableError(err)
		}
		return err
	}

	backoff := retry.WithMaxRetries(2, retry.NewConstant(100*time.Millisecond))
	return retry.Do(ctx, backoff, write)
}

func (s *Store) afterSave(ctx context.Context, stored models.Client, update bool) {
	if err := s.cache.Put(stored); err != nil {
		s.log.Error(ctx, "fallback cache write failed", "id", stored.ID, "error", err)
	}
	s.backups.NotifySaved()

	action := bus.ActionNewClient
	if update {
		action = bus.ActionClientUpdated
	}
	s.changes.Publish(bus.Message{
		Action:       action,
		Payload:      stored.ID,
		SourceDevice: stored.SourceDevice,
	})

	if e := s.syncer(); e != nil && !stored.Synced {
		e.Enqueue(ctx, stored)
	}
}

// Get returns one record with sensitive fields revealed, or
// common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Client, error) {
	stored, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	revealed := s.obf.Reveal(ctx, *stored)
	return &revealed, nil
}

// List returns every record in store order, revealed.
func (s *Store) List(ctx context.Context) ([]models.Client, error) {
	stored, err := s.clients.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.revealAll(ctx, stored), nil
}

// ListByCategory returns the records of one category, revealed.
func (s *Store) ListByCategory(ctx context.Context, category models.Category) ([]models.Client, error) {
	stored, err := s.clients.GetByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return s.revealAll(ctx, stored), nil
}

// Search performs case-insensitive substring matching over name, email,
// phone and category. With obfuscation enabled the match runs over
// revealed values in memory, since the persisted representation is not
// searchable.
func (s *Store) Search(ctx context.Context, term string) ([]models.Client, error) {
	if !s.obf.Enabled() {
		return s.clients.Search(ctx, term)
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	var out []models.Client
	for _, c := range all {
		haystack := strings.ToLower(strings.Join([]string{
			c.FirstName, c.LastName, c.Email, c.Phone, string(c.Category),
		}, "\x00"))
		if strings.Contains(haystack, needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Delete removes a record and its payments, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var ok bool
	err := dbx.WithTx(ctx, s.handle.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		ok, err = clients.NewSQLiteRepository(tx).DeleteByID(ctx, id)
		if err != nil || !ok {
			return err
		}
		return payments.NewSQLiteRepository(tx).DeleteByClientID(ctx, id)
	})
	if err != nil || !ok {
		return false, err
	}
	s.changes.Publish(bus.Message{
		Action:       bus.ActionClientDeleted,
		Payload:      id,
		SourceDevice: s.deviceID,
	})
	return true, nil
}

// Clear removes every client and payment record.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return dbx.WithTx(ctx, s.handle.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := clients.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return payments.NewSQLiteRepository(tx).Clear(ctx)
	})
}

// RecordPayment marks a client paid and appends the payment event.
func (s *Store) RecordPayment(ctx context.Context, clientID string) (*models.Payment, error) {
	rec, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &models.Payment{
		ID:        fmt.Sprintf("PAY_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:6]),
		ClientID:  clientID,
		Status:    models.PaymentPaid,
		Timestamp: now,
	}
	if err := s.payments.Upsert(ctx, p); err != nil {
		return nil, err
	}

	rec.PaymentStatus = models.PaymentPaid
	rec.PaymentDate = &now
	if _, err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return p, nil
}

// Payments returns the payment events for one client.
func (s *Store) Payments(ctx context.Context, clientID string) ([]models.Payment, error) {
	return s.payments.GetByClientID(ctx, clientID)
}

// RecoverFromFallback replays the fallback cache into the record store
// when the store turns out empty at startup. Returns how many records were
// recovered.
func (s *Store) RecoverFromFallback(ctx context.Context) (int, error) {
	count, err := s.clients.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	cached, err := s.cache.GetAll()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for i := range cached {
		rec := cached[i]
		if _, err := s.Save(ctx, &rec); err != nil {
			s.log.Error(ctx, "fallback replay failed for record", "id", rec.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.log.Warn(ctx, "record store was empty, recovered from fallback cache", "count", recovered)
	}
	return recovered, nil
}

func (s *Store) revealAll(ctx context.Context, stored []models.Client) []models.Client {
	out := make([]models.Client, 0, len(stored))
	for _, c := range stored {
		out = append(out, s.obf.Reveal(ctx, c))
	}
	return out
}
