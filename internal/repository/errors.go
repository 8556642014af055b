package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ykarpov/ListKeeper/internal/apperr"
)

// pqError maps Postgres constraint violations onto the shared error kinds.
// A foreign-key violation means the referenced parent row vanished between
// the access check and the write, which callers treat as NotFound. A
// unique violation is a structural conflict.
func pqError(err error) error {
	var perr *pq.Error
	if !errors.As(err, &perr) {
		return err
	}
	switch perr.Code {
	case "23503": // foreign_key_violation
		return fmt.Errorf("%s: %w", perr.Message, apperr.ErrNotFound)
	case "23505": // unique_violation
		return fmt.Errorf("%s: %w", perr.Message, apperr.ErrConflict)
	}
	return err
}
