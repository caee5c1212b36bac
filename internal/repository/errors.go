package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the
// caller's college.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input violates a field or cross-field rule.
var ErrValidation = errors.New("validation failed")

// ErrConflict is returned when a write would break a uniqueness rule, the
// target is in the wrong state, or dependents block a delete.
var ErrConflict = errors.New("conflict")

// ErrCapacityExceeded is returned when an event has no remaining capacity.
var ErrCapacityExceeded = errors.New("event is fully booked")
