package booking

import "errors"

var (
	// ErrNotFound means a referenced doctor, user or appointment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the caller does not own the resource and holds no
	// role that overrides ownership.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSlotUnavailable means the requested time is already booked.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrPreconditionFailed means the appointment is in a state that forbids
	// the requested transition.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrValidation means the input was malformed.
	ErrValidation = errors.New("validation error")
)
