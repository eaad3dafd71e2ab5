package service

import (
	"errors"

	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
)

// collaboratorError passes domain errors from collaborators through untouched and
// gives anything uncoded the fallback code.
func collaboratorError(err error, code dErrors.Code, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, code, msg)
}

func identityError(err error) error {
	return collaboratorError(err, dErrors.CodeUnavailable, "identity lookup failed")
}

// storeError translates store sentinels into domain errors. Everything else is a
// storage failure.
func storeError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "claim not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
