package models

import "time"

// Payment is a payment event associated with a client record. Payments are
// only eventually consistent with their client; no cross-table transaction
// is required.
type Payment struct {
	ID        string        `json:"id"`
	ClientID  string        `json:"clientId"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
