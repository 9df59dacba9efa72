package models

import "time"

// SnapshotLatestID is the reserved id of the periodically refreshed
// "latest" backup slot. Dated snapshots get generated ids.
const SnapshotLatestID = "latest"

// Snapshot is an immutable point-in-time copy of every client and payment
// record, used by the backup subsystem.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Clients  []Client  `json:"clients"`
	Payments []Payment `json:"payments"`

	ClientCount  int `json:"clientCount"`
	PaymentCount int `json:"paymentCount"`
}
