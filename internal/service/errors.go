package service

import (
	"errors"

	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// storeError translates repository sentinels into domain errors. Anything else
// passes through and becomes a 500 at the HTTP boundary.
func storeError(resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", nil)
	}
	return err
}
