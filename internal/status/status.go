package status

import (
	"errors"
	"fmt"
)

// Error kinds. Everything a handler needs to pick an HTTP code is an
// errors.Is check against one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
)

// Conflict reasons. Callers remediate differently per constraint, so
// storage violations are never collapsed into a generic conflict.
var (
	ErrDeviceRegistered   = fmt.Errorf("%w: device already registered", ErrConflict)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrRegistrationClosed = fmt.Errorf("%w: registration closed", ErrConflict)
	ErrAlreadyVoted       = fmt.Errorf("%w: already voted", ErrConflict)
	ErrPerformanceEnded   = fmt.Errorf("%w: performance ended", ErrConflict)
	ErrPerformanceActive  = fmt.Errorf("%w: a performance is still active", ErrConflict)
	ErrAlreadySinging     = fmt.Errorf("%w: another singer is up", ErrConflict)
	ErrNotWaiting         = fmt.Errorf("%w: entry is not waiting", ErrConflict)
	ErrEntryDone          = fmt.Errorf("%w: entry already done", ErrConflict)
)

var (
	ErrScoreOutOfRange = fmt.Errorf("%w: score out of range", ErrInvalid)
	ErrNameRequired    = fmt.Errorf("%w: name is required", ErrInvalid)
)

// Reason maps an error to the machine-readable tag returned in JSON
// error payloads.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrDeviceRegistered):
		return "device_already_registered"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrRegistrationClosed):
		return "registration_closed"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrPerformanceEnded):
		return "performance_ended"
	case errors.Is(err, ErrPerformanceActive):
		return "performance_active"
	case errors.Is(err, ErrAlreadySinging):
		return "already_singing"
	case errors.Is(err, ErrNotWaiting):
		return "not_waiting"
	case errors.Is(err, ErrEntryDone):
		return "entry_done"
	case errors.Is(err, ErrScoreOutOfRange):
		return "score_out_of_range"
	case errors.Is(err, ErrNameRequired):
		return "name_required"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	default:
		return "internal"
	}
}
