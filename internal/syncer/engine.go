// Package syncer maintains the ordered queue of not-yet-acknowledged
// records and drives their delivery to the remote boundary: retries with
// exponential backoff, a periodic sweep re-discovering unsynced records,
// and last-writer-wins resolution of inbound remote updates.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dsall/regvault/internal/bus"
	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/logging"
	"github.com/dsall/regvault/internal/metrics"
	"github.com/dsall/regvault/internal/models"
)

// Store is the slice of the record store the engine needs. Implemented by
// the services layer.
type Store interface {
	// GetUnsynced returns records with synced=false, oldest update first.
	GetUnsynced(ctx context.Context) ([]models.Client, error)

	// MarkSynced persists the synced flag and timestamp for a record.
	MarkSynced(ctx context.Context, id string, at time.Time) error

	// GetByID returns a record or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Client, error)

	// ApplyUpsert persists an externally originated record as-is.
	ApplyUpsert(ctx context.Context, c models.Client) error
}

// EntryStatus is the lifecycle state of a queue entry.
type EntryStatus string

const (
	StatusPending    EntryStatus = "pending"
	StatusProcessing EntryStatus = "processing"
	StatusSynced     EntryStatus = "synced"
	StatusFailed     EntryStatus = "failed"
)

type entry struct {
	record     models.Client
	retryCount int
	enqueuedAt time.Time
	status     EntryStatus
}

// Options tune engine timing. Zero values select production defaults;
// tests shrink them.
type Options struct {
	// MaxRetries is the delivery retry ceiling per drain pass.
	MaxRetries int
	// BaseBackoff is the first retry delay; subsequent delays double.
	BaseBackoff time.Duration
	// SweepInterval is how often unsynced records are re-discovered.
	SweepInterval time.Duration
	// StartupSweepDelay is the delay before the first sweep after Run.
	StartupSweepDelay time.Duration
	// DeliverTimeout bounds a single delivery attempt.
	DeliverTimeout time.Duration
}

func (o *Options) defaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 2 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 10 * time.Second
	}
	if o.StartupSweepDelay <= 0 {
		o.StartupSweepDelay = 2 * time.Second
	}
	if o.DeliverTimeout <= 0 {
		o.DeliverTimeout = 5 * time.Second
	}
}

// Engine owns the transient sync queue. The queue is never persisted: a
// crash loses queued entries, which is acceptable because synced=false
// records are re-discovered from the store by the sweep.
type Engine struct {
	store     Store
	deliverer Deliverer
	tracker   *metrics.Tracker
	log       logging.Logger
	changes   *bus.Bus
	opts      Options

	mu     sync.Mutex
	queue  []*entry
	queued map[string]struct{}

	// drainMu guarantees at most one active drain; a second trigger while
	// draining is coalesced via TryLock and picked up by the sweep.
	drainMu  sync.Mutex
	draining bool
}

// New returns an idle engine. Call Run to start the periodic sweep.
func New(store Store, deliverer Deliverer, tracker *metrics.Tracker,
	log logging.Logger, changes *bus.Bus, opts Options) *Engine {
	opts.defaults()
	return &Engine{
		store:     store,
		deliverer: deliverer,
		tracker:   tracker,
		log:       log,
		changes:   changes,
		opts:      opts,
		queued:    make(map[string]struct{}),
	}
}

// Enqueue appends the record to the queue tail and begins draining if the
// engine is idle. Records already queued are ignored.
func (e *Engine) Enqueue(ctx context.Context, record models.Client) {
	e.mu.Lock()
	if _, ok := e.queued[record.ID]; ok {
		e.mu.Unlock()
		return
	}
	e.queued[record.ID] = struct{}{}
	e.queue = append(e.queue, &entry{
		record:     record,
		enqueuedAt: time.Now(),
		status:     StatusPending,
	})
	e.mu.Unlock()

	go e.Drain(ctx)
}

// QueueDepth returns the number of entries waiting or processing.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// IsSyncing reports whether a drain is currently active.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draining
}

func (e *Engine) setDraining(v bool) {
	e.mu.Lock()
	e.draining = v
	e.mu.Unlock()
}

func (e *Engine) head() *entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil
	}
	return e.queue[0]
}

func (e *Engine) pop(en *entry, status EntryStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en.status = status
	if len(e.queue) > 0 && e.queue[0] == en {
		e.queue = e.queue[1:]
	}
	delete(e.queued, en.record.ID)
}

// Drain processes the queue head-first until empty. At most one drain runs
// at a time; re-entrant calls are no-ops.
func (e *Engine) Drain(ctx context.Context) {
	if !e.drainMu.TryLock() {
		return
	}
	defer e.drainMu.Unlock()

	e.setDraining(true)
	defer e.setDraining(false)

	for {
		if ctx.Err() != nil {
			return
		}
		en := e.head()
		if en == nil {
			return
		}

		if err := e.deliverHead(ctx, en); err != nil {
			// Ceiling exceeded: drop the entry, the record stays
			// synced=false and the sweep re-discovers it later.
			e.pop(en, StatusFailed)
			e.log.Warn(ctx, "record failed to sync, leaving for sweep",
				"id", en.record.ID, "retries", en.retryCount, "error", err)
			continue
		}

		now := time.Now().UTC()
		if err := e.store.MarkSynced(ctx, en.record.ID, now); err != nil {
			e.log.Error(ctx, "failed to persist synced flag", "id", en.record.ID, "error", err)
			e.pop(en, StatusFailed)
			continue
		}
		e.pop(en, StatusSynced)
		e.changes.Publish(bus.Message{
			Action:       bus.ActionSyncClients,
			Payload:      en.record.ID,
			SourceDevice: en.record.SourceDevice,
		})
	}
}

// deliverHead attempts delivery of one entry, retrying in place with
// exponential backoff. Queue ordering is preserved: no entry skips ahead
// of a blocked head.
func (e *Engine) deliverHead(ctx context.Context, en *entry) error {
	en.status = StatusProcessing

	// MaxRetries is the attempt ceiling: the first attempt plus
	// MaxRetries-1 in-place retries of the same head entry.
	backoff := retry.WithMaxRetries(uint64(e.opts.MaxRetries-1), retry.NewExponential(e.opts.BaseBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.DeliverTimeout)
		defer cancel()

		started := time.Now()
		err := e.deliverer.Deliver(attemptCtx, []models.Client{en.record})
		e.tracker.RecordSync(time.Since(started), err == nil)

		if err != nil {
			en.retryCount++
			return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrDeliveryFailed, err))
		}
		return nil
	})
}

// Sweep queries the store for unsynced records and enqueues any not
// already queued, then drains. It guarantees eventual retry even for
// entries dropped after exhausting the retry ceiling.
func (e *Engine) Sweep(ctx context.Context) {
	records, err := e.store.GetUnsynced(ctx)
	if err != nil {
		e.log.Error(ctx, "sweep failed to query unsynced records", "error", err)
		return
	}
	for _, r := range records {
		e.Enqueue(ctx, r)
	}
}

// ApplyRemote resolves an inbound remote update against local state.
// The incoming record is applied only when its LastUpdated is strictly
// greater than the local one (last-writer-wins); otherwise it is discarded.
// A missing local record means unconditional apply.
func (e *Engine) ApplyRemote(ctx context.Context, incoming models.Client) (bool, error) {
	local, err := e.store.GetByID(ctx, incoming.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return false, err
	}
	if local != nil && !incoming.LastUpdated.After(local.LastUpdated) {
		return false, nil
	}
	if err := e.store.ApplyUpsert(ctx, incoming); err != nil {
		return false, err
	}
	e.changes.Publish(bus.Message{
		Action:       bus.ActionClientUpdated,
		Payload:      incoming.ID,
		SourceDevice: incoming.SourceDevice,
	})
	return true, nil
}

// Run starts the startup sweep, the periodic sweep and the force-sync
// listener, blocking until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	force, cancel := e.changes.Subscribe(8)
	defer cancel()

	startup := time.NewTimer(e.opts.StartupSweepDelay)
	defer startup.Stop()
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-startup.C:
			e.Sweep(ctx)
		case <-ticker.C:
			e.Sweep(ctx)
		case msg, ok := <-force:
			if !ok {
				return
			}
			if msg.Action == bus.ActionForceSync {
				e.Sweep(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}
