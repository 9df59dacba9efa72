package models

import "time"

// ExportStats summarizes an export for quick inspection of the file.
type ExportStats struct {
	TotalClients int `json:"totalClients"`
	Synced       int `json:"synced"`
	Unsynced     int `json:"unsynced"`
}

// Export is the full-fidelity interchange envelope. Importing replays every
// client and payment through the store with last-writer-wins semantics.
type Export struct {
	ExportDate time.Time   `json:"exportDate"`
	Version    int         `json:"version"`
	DeviceID   string      `json:"deviceId"`
	Clients    []Client    `json:"clients"`
	Payments   []Payment   `json:"payments"`
	Stats      ExportStats `json:"stats"`
}

// ExportFormatVersion is bumped whenever the envelope layout changes.
const ExportFormatVersion = 1
