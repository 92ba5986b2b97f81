package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and event sources return
// these (optionally wrapped) so callers can branch on them without string
// matching.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	// ErrInvalidState means a resource is in the wrong state for the operation,
	// e.g. a cursor written by a different source.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable means a backing service is gone or temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)
