package booking

import "errors"

// Engine error taxonomy. Callers match with errors.Is; the API layer maps
// these onto HTTP status codes and distinct error codes so the UI can tell
// "slot just got booked" apart from "booking can no longer be changed".
var (
	// ErrNotFound covers missing or inactive shops, services, stylists and
	// missing bookings.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed times and dates, non-positive
	// durations and out-of-window booking dates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTimeRange covers midnight-crossing requests and end-before-
	// start intervals.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrSlotUnavailable is returned when the authoritative conflict recheck
	// finds the requested slot taken at submission time.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInvalidTransition is returned for illegal status changes; the
	// booking is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when the actor lacks the role or ownership
	// to perform the action.
	ErrUnauthorized = errors.New("unauthorized")
)
