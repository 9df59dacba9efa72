package services

import (
	"context"
	"time"

	"github.com/dsall/regvault/internal/metrics"
)

// Diagnostics is the read-only health surface consulted by operators and
// the CLI.
type Diagnostics struct {
	Initialized   bool  `json:"initialized"`
	SchemaVersion int64 `json:"schemaVersion"`
	// ResetOccurred reports the lossy reset-and-reopen recovery path; it
	// is a known, accepted degradation that must never be hidden.
	ResetOccurred bool `json:"resetOccurred"`

	TotalClients    int `json:"totalClients"`
	SyncedClients   int `json:"syncedClients"`
	UnsyncedClients int `json:"unsyncedClients"`

	QueueDepth int  `json:"queueDepth"`
	Syncing    bool `json:"syncing"`

	ObfuscationEnabled bool      `json:"obfuscationEnabled"`
	LastBackupAt       time.Time `json:"lastBackupAt"`

	Metrics metrics.Snapshot `json:"metrics"`
}

// Diagnostics reports the current store state.
func (s *Store) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	total, err := s.clients.Count(ctx)
	if err != nil {
		return nil, err
	}
	unsyncedRecs, err := s.clients.GetUnsynced(ctx)
	if err != nil {
		return nil, err
	}

	d := &Diagnostics{
		Initialized:        true,
		SchemaVersion:      s.handle.Version,
		ResetOccurred:      s.handle.ResetOccurred,
		TotalClients:       total,
		UnsyncedClients:    len(unsyncedRecs),
		SyncedClients:      total - len(unsyncedRecs),
		ObfuscationEnabled: s.obf.Enabled(),
		LastBackupAt:       s.backups.LastBackupAt(),
		Metrics:            s.tracker.Snapshot(),
	}
	if e := s.syncer(); e != nil {
		d.QueueDepth = e.QueueDepth()
		d.Syncing = e.IsSyncing()
	}
	return d, nil
}
