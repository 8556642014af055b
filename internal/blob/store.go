// Package blob abstracts the external byte store file attachments live in.
// The rest of the system addresses blobs only through the opaque locator
// a Store hands back.
package blob

import (
	"context"
	"io"
)

// Store persists raw file bytes and serves them by locator.
type Store interface {
	// Save stores the bytes read from r under a fresh object derived from
	// name and returns the public locator for it. The context bounds the
	// call; a cancelled context aborts the write.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Delete removes the blob behind the locator. A missing blob is
	// reported as apperr.ErrNotFound.
	Delete(ctx context.Context, locator string) error
}
