// Package metrics accumulates operational counters for sync, save and
// backup activity. The tracker itself is purely in-memory and resets on
// restart; the same events also feed Prometheus collectors for external
// scraping.
package metrics

import (
	"sync"
	"time"
)

// Tracker counts successes, failures and durations. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	startedAt time.Time

	syncSuccesses int64
	syncFailures  int64
	syncDuration  time.Duration

	saveSuccesses int64
	saveFailures  int64

	backupsCreated  int64
	backupsRestored int64
}

// NewTracker returns a tracker with uptime measured from now.
func NewTracker() *Tracker {
	return &Tracker{startedAt: time.Now()}
}

// RecordSync records one completed delivery attempt.
func (t *Tracker) RecordSync(d time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if success {
		t.syncSuccesses++
	} else {
		t.syncFailures++
	}
	t.syncDuration += d

	syncTotal.WithLabelValues(result(success)).Inc()
	syncDuration.Observe(d.Seconds())
}

// RecordSave records one save attempt.
func (t *Tracker) RecordSave(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if success {
		t.saveSuccesses++
	} else {
		t.saveFailures++
	}

	saveTotal.WithLabelValues(result(success)).Inc()
}

// RecordBackupCreated records one snapshot creation.
func (t *Tracker) RecordBackupCreated() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backupsCreated++

	backupTotal.WithLabelValues("created").Inc()
}

// RecordBackupRestored records one snapshot restore.
func (t *Tracker) RecordBackupRestored() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backupsRestored++

	backupTotal.WithLabelValues("restored").Inc()
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	SyncAttempts    int64         `json:"syncAttempts"`
	SyncSuccesses   int64         `json:"syncSuccesses"`
	SyncFailures    int64         `json:"syncFailures"`
	SyncSuccessRate float64       `json:"syncSuccessRate"`
	AvgSyncDuration time.Duration `json:"avgSyncDuration"`

	SaveSuccesses int64 `json:"saveSuccesses"`
	SaveFailures  int64 `json:"saveFailures"`

	BackupsCreated  int64 `json:"backupsCreated"`
	BackupsRestored int64 `json:"backupsRestored"`

	Uptime time.Duration `json:"uptime"`
}

// Snapshot returns current totals, success rate and averages.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		SyncAttempts:    t.syncSuccesses + t.syncFailures,
		SyncSuccesses:   t.syncSuccesses,
		SyncFailures:    t.syncFailures,
		SaveSuccesses:   t.saveSuccesses,
		SaveFailures:    t.saveFailures,
		BackupsCreated:  t.backupsCreated,
		BackupsRestored: t.backupsRestored,
		Uptime:          time.Since(t.startedAt),
	}
	if s.SyncAttempts > 0 {
		s.SyncSuccessRate = float64(s.SyncSuccesses) / float64(s.SyncAttempts)
		s.AvgSyncDuration = t.syncDuration / time.Duration(s.SyncAttempts)
	}
	return s
}
