package replay

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is matched by every *EmptyInputError via errors.Is
var ErrEmptyInput = errors.New("replay: no location samples")

// EmptyInputError aborts a session load: no participant can be derived
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	if e.Source == "" {
		return ErrEmptyInput.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrEmptyInput.Error(), e.Source)
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// MissingTrackError reports a participant that is referenced by the capture
// log or the name lookup but never sent a location. The participant is left
// out of rendering.
type MissingTrackError struct {
	ParticipantID string
	ReferencedBy  string // "capture" or "names"
}

func (e *MissingTrackError) Error() string {
	return fmt.Sprintf("replay: participant %q referenced by %s has no track", e.ParticipantID, e.ReferencedBy)
}

// DegenerateIntervalError reports two adjacent samples with the same timestamp.
// Interpolation snaps to the earlier one.
type DegenerateIntervalError struct {
	ParticipantID string
	Time          int64
	Index         int
}

func (e *DegenerateIntervalError) Error() string {
	return fmt.Sprintf("replay: participant %q has duplicate timestamp %d at index %d", e.ParticipantID, e.Time, e.Index)
}

// InvalidGameStateError is returned for game_state values outside the known set
type InvalidGameStateError struct {
	Value string
}

func (e *InvalidGameStateError) Error() string {
	return fmt.Sprintf("replay: unknown game state %q", e.Value)
}

// InvalidTeamRoleError is returned for team_role values outside the known set
type InvalidTeamRoleError struct {
	Value string
}

func (e *InvalidTeamRoleError) Error() string {
	return fmt.Sprintf("replay: unknown team role %q", e.Value)
}

// CatchMismatchError reports a participant whose capture time disagrees with
// the first fix in which it reported itself as a hunter. A zero HunterSince
// means it never did; a zero CaughtAt means it is not on the catch timeline.
type CatchMismatchError struct {
	ParticipantID string
	CaughtAt      int64
	HunterSince   int64
}

func (e *CatchMismatchError) Error() string {
	switch {
	case e.HunterSince == 0:
		return fmt.Sprintf("replay: participant %q caught at %d never reported as hunter", e.ParticipantID, e.CaughtAt)
	case e.CaughtAt == 0:
		return fmt.Sprintf("replay: participant %q reported as hunter from %d without a capture", e.ParticipantID, e.HunterSince)
	default:
		return fmt.Sprintf("replay: participant %q caught at %d but hunter from %d", e.ParticipantID, e.CaughtAt, e.HunterSince)
	}
}

// TimestampError is returned when a capture timestamp cannot be parsed
type TimestampError struct {
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("replay: invalid timestamp %q: %v", e.Value, e.Err)
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}
