// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = fmt.Errorf("%w: invalid ID", ErrValidation)

	// ErrInvalidTaskStatus is returned when a task status is not one of the known values.
	ErrInvalidTaskStatus = fmt.Errorf("%w: invalid task status", ErrValidation)

	// ErrInvalidTaskPriority is returned when a task priority is not one of the known values.
	ErrInvalidTaskPriority = fmt.Errorf("%w: invalid task priority", ErrValidation)

	// ErrEmptyTitle is returned when a task is created or updated with an empty title.
	ErrEmptyTitle = fmt.Errorf("%w: task title cannot be empty", ErrValidation)

	// ErrDependencyUnavailable is returned when the cache or the job queue cannot
	// be reached. Callers recover from it locally: cache failures become misses and
	// enqueue failures are logged without failing the committed write.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
