package job

import (
	"errors"
	"fmt"
)

// Common errors returned by the job pipeline.
var (
	// ErrPermanent marks a failure that retrying cannot fix.
	ErrPermanent = errors.New("permanent job failure")

	// ErrUnknownKind is returned for envelopes whose kind has no payload type or handler.
	ErrUnknownKind = errors.New("unknown job kind")

	// ErrInvalidPayload is returned when a payload cannot be decoded or fails validation.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrQueueClosed is returned when enqueueing to a closed queue.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrQueueFull is returned when the queue buffer has no room.
	ErrQueueFull = errors.New("job queue is full")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPermanent, e.err)
}

func (e *permanentError) Unwrap() []error {
	return []error{ErrPermanent, e.err}
}

// Permanent wraps err so the consumer stops retrying the job.
// errors.Is matches both ErrPermanent and the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermanent) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
