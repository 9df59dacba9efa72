package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_SyncCounters(t *testing.T) {
	tr := NewTracker()

	tr.RecordSync(100*time.Millisecond, true)
	tr.RecordSync(300*time.Millisecond, true)
	tr.RecordSync(200*time.Millisecond, false)

	s := tr.Snapshot()
	assert.Equal(t, int64(3), s.SyncAttempts)
	assert.Equal(t, int64(2), s.SyncSuccesses)
	assert.Equal(t, int64(1), s.SyncFailures)
	assert.InDelta(t, 2.0/3.0, s.SyncSuccessRate, 1e-9)
	assert.Equal(t, 200*time.Millisecond, s.AvgSyncDuration)
}

func TestTracker_EmptySnapshot(t *testing.T) {
	tr := NewTracker()
	s := tr.Snapshot()

	assert.Zero(t, s.SyncAttempts)
	assert.Zero(t, s.SyncSuccessRate)
	assert.Zero(t, s.AvgSyncDuration)
	assert.GreaterOrEqual(t, s.Uptime, time.Duration(0))
}

func TestTracker_SaveAndBackupCounters(t *testing.T) {
	tr := NewTracker()

	tr.RecordSave(true)
	tr.RecordSave(true)
	tr.RecordSave(false)
	tr.RecordBackupCreated()
	tr.RecordBackupRestored()

	s := tr.Snapshot()
	assert.Equal(t, int64(2), s.SaveSuccesses)
	assert.Equal(t, int64(1), s.SaveFailures)
	assert.Equal(t, int64(1), s.BackupsCreated)
	assert.Equal(t, int64(1), s.BackupsRestored)
}
