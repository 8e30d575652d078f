package common

import "errors"

// Error taxonomy for the graph core. Callers discriminate with errors.Is;
// everything else (collaborator failures from the blob store or vector
// index) is wrapped with %w and propagated unchanged.
var (
	// ErrNotFound is returned by lookups that miss. Ordinary and recoverable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when a call is rejected before any
	// mutation: out-of-range confidence, empty required field, duplicate ID.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEntityNotFound is returned when an operation references an entity
	// that does not exist in the graph. The operation makes no state change.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrContentMismatch is returned when a block's recomputed content
	// address does not match its claimed address.
	ErrContentMismatch = errors.New("content mismatch")

	// ErrCorruptArchive is returned when an archive import fails integrity
	// verification. The whole import aborts; no partial graph is installed.
	ErrCorruptArchive = errors.New("corrupt archive")
)
