// Package models defines the persisted data types of the regvault core:
// registrant (client) records, payment records, backup snapshots and the
// export envelope.
package models

import "time"

// Category classifies a registration kind. The set is closed.
type Category string

const (
	CategorySingle Category = "single"
	CategoryPair   Category = "pair"
)

// ValidCategory reports whether c belongs to the closed category set.
func ValidCategory(c Category) bool {
	return c == CategorySingle || c == CategoryPair
}

// PaymentStatus is the payment state of a client record.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Client is one registrant record. It is the unit of persistence,
// synchronization and backup.
//
// Invariants:
//   - exactly one record per ID; the ID is immutable once assigned
//   - LastUpdated strictly increases on every mutation
//   - Synced implies SyncedAt is non-zero
type Client struct {
	ID string `json:"id"`

	FirstName string   `json:"name1"`
	LastName  string   `json:"name2,omitempty"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Category  Category `json:"category"`

	CreatedAt    time.Time `json:"createdAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
	SourceDevice string    `json:"sourceDevice"`

	Synced   bool       `json:"synced"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`
	// Version is a local optimistic counter, bumped on every save.
	Version int64 `json:"version"`

	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentDate   *time.Time    `json:"paymentDate,omitempty"`

	// Obfuscated marks records whose sensitive fields carry the at-rest
	// transform tag. Never set on records returned across the read boundary.
	Obfuscated bool `json:"obfuscated,omitempty"`
}

// Clone returns a deep copy of c. Pointer fields are duplicated so the
// caller can mutate the copy freely.
func (c Client) Clone() Client {
	out := c
	if c.SyncedAt != nil {
		t := *c.SyncedAt
		out.SyncedAt = &t
	}
	if c.PaymentDate != nil {
		t := *c.PaymentDate
		out.PaymentDate = &t
	}
	return out
}
