package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: record does not exist in the store
// - ErrConflict: unique key already taken (duplicate list item, wallet per partner)
// - ErrInvalidState: record is in the wrong state for the requested write
// - ErrUnavailable: backing service (Redis, Kafka, ERP) temporarily unavailable
// - ErrLockHeld: another worker owns the distributed lock
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrLockHeld     = errors.New("lock held")
)
