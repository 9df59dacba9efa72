package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsall/regvault/internal/bus"
	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/logging"
	"github.com/dsall/regvault/internal/metrics"
	"github.com/dsall/regvault/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.Client
}

func newFakeStore(recs ...models.Client) *fakeStore {
	s := &fakeStore{records: make(map[string]models.Client)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) GetUnsynced(_ context.Context) ([]models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Client
	for _, r := range s.records {
		if !r.Synced {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkSynced(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return common.ErrNotFound
	}
	r.Synced = true
	r.SyncedAt = &at
	s.records[id] = r
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := r.Clone()
	return &out, nil
}

func (s *fakeStore) ApplyUpsert(_ context.Context, c models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.ID] = c
	return nil
}

func (s *fakeStore) get(id string) models.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

type countingDeliverer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (d *countingDeliverer) Deliver(_ context.Context, _ []models.Client) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail {
		return errors.New("remote unavailable")
	}
	return nil
}

func (d *countingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func testOptions() Options {
	return Options{
		MaxRetries:        3,
		BaseBackoff:       time.Millisecond,
		SweepInterval:     50 * time.Millisecond,
		StartupSweepDelay: 10 * time.Millisecond,
		DeliverTimeout:    time.Second,
	}
}

func testEngine(store Store, d Deliverer) (*Engine, *bus.Bus) {
	b := bus.New()
	e := New(store, d, metrics.NewTracker(), logging.NewNop(), b, testOptions())
	return e, b
}

func unsyncedClient(id string) models.Client {
	return models.Client{
		ID: id, FirstName: "n-" + id, Email: id + "@x.com",
		Category: models.CategorySingle, LastUpdated: time.Now().UTC(),
	}
}

func TestEnqueue_DrainsToSynced(t *testing.T) {
	store := newFakeStore(unsyncedClient("c1"))
	d := &countingDeliverer{}
	e, b := testEngine(store, d)
	defer b.Close()

	e.Enqueue(context.Background(), store.get("c1"))

	require.Eventually(t, func() bool {
		return store.get("c1").Synced
	}, 2*time.Second, 10*time.Millisecond)

	got := store.get("c1")
	require.NotNil(t, got.SyncedAt)
	assert.Equal(t, 1, d.count())
	assert.Equal(t, 0, e.QueueDepth())
}

func TestEnqueue_DeduplicatesByID(t *testing.T) {
	// A deliverer that blocks keeps entries in the queue while we enqueue
	// duplicates.
	block := make(chan struct{})
	d := DelivererFunc(func(ctx context.Context, _ []models.Client) error {
		<-block
		return nil
	})
	store := newFakeStore(unsyncedClient("c1"))
	e, b := testEngine(store, d)
	defer b.Close()
	defer close(block)

	rec := store.get("c1")
	e.Enqueue(context.Background(), rec)
	e.Enqueue(context.Background(), rec)
	e.Enqueue(context.Background(), rec)

	assert.Equal(t, 1, e.QueueDepth())
}

func TestRetryCeiling_EntryFailsRecordStaysUnsynced(t *testing.T) {
	store := newFakeStore(unsyncedClient("c1"))
	d := &countingDeliverer{fail: true}
	e, b := testEngine(store, d)
	defer b.Close()

	e.Enqueue(context.Background(), store.get("c1"))

	require.Eventually(t, func() bool {
		return e.QueueDepth() == 0 && !e.IsSyncing()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, d.count(), "initial attempt plus two retries")
	assert.False(t, store.get("c1").Synced)
}

func TestSweep_RediscoversFailedRecords(t *testing.T) {
	store := newFakeStore(unsyncedClient("c1"))
	d := &countingDeliverer{fail: true}
	e, b := testEngine(store, d)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.Enqueue(ctx, store.get("c1"))
	require.Eventually(t, func() bool { return e.QueueDepth() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The remote recovers; the periodic sweep must re-enqueue and sync.
	d.mu.Lock()
	d.fail = false
	d.mu.Unlock()

	go e.Run(ctx)

	require.Eventually(t, func() bool {
		return store.get("c1").Synced
	}, 3*time.Second, 20*time.Millisecond)
}

func TestDrain_SingleActiveDrain(t *testing.T) {
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	d := DelivererFunc(func(ctx context.Context, _ []models.Client) error {
		started <- struct{}{}
		<-release
		return nil
	})
	store := newFakeStore(unsyncedClient("c1"), unsyncedClient("c2"))
	e, b := testEngine(store, d)
	defer b.Close()

	ctx := context.Background()
	e.Enqueue(ctx, store.get("c1"))
	e.Enqueue(ctx, store.get("c2"))

	<-started
	// Only one delivery may be in flight even with two queued entries and
	// two Enqueue-triggered drains.
	select {
	case <-started:
		t.Fatal("second concurrent delivery observed")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)

	require.Eventually(t, func() bool {
		return store.get("c1").Synced && store.get("c2").Synced
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplyRemote_LastWriterWins(t *testing.T) {
	base := time.Now().UTC()
	local := unsyncedClient("c1")
	local.LastUpdated = base
	local.Email = "local@x.com"
	store := newFakeStore(local)
	e, b := testEngine(store, &countingDeliverer{})
	defer b.Close()
	ctx := context.Background()

	// strictly older: discarded
	older := local.Clone()
	older.Email = "older@x.com"
	older.LastUpdated = base.Add(-time.Second)
	applied, err := e.ApplyRemote(ctx, older)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "local@x.com", store.get("c1").Email)

	// equal timestamp: discarded
	equal := local.Clone()
	equal.Email = "equal@x.com"
	applied, err = e.ApplyRemote(ctx, equal)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "local@x.com", store.get("c1").Email)

	// strictly newer: applied
	newer := local.Clone()
	newer.Email = "newer@x.com"
	newer.LastUpdated = base.Add(time.Second)
	applied, err = e.ApplyRemote(ctx, newer)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "newer@x.com", store.get("c1").Email)
}

func TestApplyRemote_AbsentLocalApplies(t *testing.T) {
	store := newFakeStore()
	e, b := testEngine(store, &countingDeliverer{})
	defer b.Close()

	incoming := unsyncedClient("remote-1")
	applied, err := e.ApplyRemote(context.Background(), incoming)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "remote-1", store.get("remote-1").ID)
}

func TestRun_ForceSyncMessageTriggersSweep(t *testing.T) {
	store := newFakeStore(unsyncedClient("c1"))
	d := &countingDeliverer{}
	b := bus.New()
	defer b.Close()
	opts := testOptions()
	opts.StartupSweepDelay = time.Hour // keep the startup sweep out of the way
	opts.SweepInterval = time.Hour
	e := New(store, d, metrics.NewTracker(), logging.NewNop(), b, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	b.Publish(bus.Message{Action: bus.ActionForceSync})

	require.Eventually(t, func() bool {
		return store.get("c1").Synced
	}, 2*time.Second, 10*time.Millisecond)
}
