package domain

import (
	"github.com/jmgilman/go/errors"
)

// ErrImageNotFound builds the NotFound error for id.
func ErrImageNotFound(id string) error {
	return errors.WithContext(
		errors.New(errors.CodeNotFound, "Image not found"),
		"id", id,
	)
}

// ErrInvalidImage builds a ValidationError with the given message.
func ErrInvalidImage(message string) error {
	return errors.New(errors.CodeInvalidInput, message)
}

// ErrStoreUnavailable wraps a persistence failure.
func ErrStoreUnavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, errors.CodeDatabase, "failed to %s", op)
}

func IsNotFound(err error) bool {
	return errors.GetCode(err) == errors.CodeNotFound
}

func IsInvalid(err error) bool {
	return errors.GetCode(err) == errors.CodeInvalidInput
}
