package types

import "errors"

var (
	// ErrNotFound is returned when a resource is absent but the operation
	// assumed it was present
	ErrNotFound = errors.New("resource not found")

	// ErrPrimitive is returned when an external tool reports failure
	ErrPrimitive = errors.New("primitive failed")

	// ErrConflict is returned when a device already belongs to another group
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for desired state rejected before any mutation
	ErrValidation = errors.New("validation failed")
)
