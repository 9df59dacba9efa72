// Package metadata persists small key/value facts about this store
// instance, such as the device identifier stamped on records.
package metadata

import "context"

// KeyDeviceID names the persistent device identifier entry.
const KeyDeviceID = "device_id"

// Repository is the metadata table access contract.
type Repository interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
