package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ykarpov/ListKeeper/internal/apperr"
)

// URLPrefix is the path blobs are served under by the HTTP layer.
const URLPrefix = "/media"

// DiskStore implements Store on the local filesystem. Object names are
// uuid-prefixed so uploads with the same file name never collide.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the storage directory if needed and returns a
// DiskStore rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes the bytes to disk and returns the /media/... locator.
func (s *DiskStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	object := uuid.New().String() + "_" + sanitize(name)
	path := filepath.Join(s.dir, object)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}

	return URLPrefix + "/" + object, nil
}

// Delete removes the blob behind the locator. Locators that do not point
// into this store, and blobs already gone, yield apperr.ErrNotFound.
func (s *DiskStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	object, ok := strings.CutPrefix(locator, URLPrefix+"/")
	if !ok {
		return fmt.Errorf("locator %q: %w", locator, apperr.ErrNotFound)
	}

	// filepath.Base strips any traversal a stored locator could carry.
	path := filepath.Join(s.dir, filepath.Base(object))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("locator %q: %w", locator, apperr.ErrNotFound)
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// sanitize reduces an uploaded file name to a safe object name component.
func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
