// Package common defines shared constants and sentinel errors used across
// regvault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrQuotaExceeded       = errors.New("storage quota exceeded")
	ErrStorageUnavailable  = errors.New("storage unavailable")

	// Schema lifecycle errors.
	ErrSchemaUnavailable = errors.New("schema unavailable")
	ErrSchemaBlocked     = errors.New("schema upgrade blocked by another handle")
	ErrVersionConflict   = errors.New("schema version conflict")

	// Input boundary errors.
	ErrValidationFailed = errors.New("validation failed")

	// Backup errors.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// Sync errors.
	ErrDeliveryFailed = errors.New("delivery failed")
)
