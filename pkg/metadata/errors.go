package metadata

import "errors"

// StoreError represents a business-logic error from a metadata store
// operation, as opposed to an infrastructure failure (connectivity, disk).
//
// Callers translate StoreError codes into their own error vocabulary; the
// browser layer maps them onto its operation results.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the zone-relative path related to the error, if applicable
	Path string
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode categorizes metadata store errors.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record with the same key already exists.
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided.
	ErrInvalidArgument

	// ErrStore indicates the underlying store failed (connectivity,
	// constraint violation, corrupted value). Retrying may succeed.
	ErrStore
)

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
//
// Callers are expected to tolerate ErrNotFound when resolving a metadata row
// whose disk entry vanished: disk and metadata fail independently and the
// store is only a shadow of the tree.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrNotFound
}
