package services

import (
	"errors"
	"fmt"

	"github.com/lborres/tether/core"
)

// storageErr marks an unexpected store failure as ErrStorageUnavailable.
// Domain sentinels pass through unchanged.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrStorageUnavailable),
		errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrUserExists),
		errors.Is(err, core.ErrSessionNotFound):
		return err
	default:
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
}
