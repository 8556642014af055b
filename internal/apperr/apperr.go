// Package apperr defines the error kinds shared across the service.
// Callers wrap them with context via fmt.Errorf("...: %w", ...) and
// branch with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means the referenced checklist, category, item, file,
	// or token does not exist or was deleted.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the principal resolved but lacks the required
	// access level.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation means the request payload is invalid, such as an
	// empty or oversized name, or a missing file.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means a structural invariant would be violated.
	ErrConflict = errors.New("conflict")
	// ErrUpstream means the blob store or identity provider failed;
	// the condition is treated as transient.
	ErrUpstream = errors.New("upstream failure")
)
