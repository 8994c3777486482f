package guidance

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateTrack is returned for empty tracks and zero-length
	// segments. The caller should hold its previous steering command.
	ErrDegenerateTrack = errors.New("guidance: degenerate track")

	// ErrPreconditionViolation marks caller bugs such as a one-point track
	// or non-positive vehicle geometry. It is not worth retrying.
	ErrPreconditionViolation = errors.New("guidance: precondition violation")
)

// TrackError locates a geometry failure on the track.
type TrackError struct {
	Index  int
	Reason string
	Err    error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("%v: %s at index %d", e.Err, e.Reason, e.Index)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}
