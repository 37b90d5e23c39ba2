package syncer

import (
	"errors"

	"library-sync/internal/projection"
)

var (
	// ErrValidation wraps payload schema failures (ozzo-validation errors).
	ErrValidation = errors.New("payload validation failed")

	// ErrMalformedPayload is returned for undecodable payloads or a missing id.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnroutable is returned for topics with no registered handler.
	ErrUnroutable = errors.New("no handler registered for topic")

	ErrUnknownOperation = errors.New("unknown operation")
)

// IsPermanent reports whether retrying err can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrUnroutable) ||
		errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, projection.ErrNotFound)
}
