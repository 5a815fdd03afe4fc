// Package feed reads the JSON logs exported by the game server and converts
// them into replay input. Every record is validated at load; a malformed
// record fails the whole load rather than producing a partial replay.
package feed

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"chase-replay/internal/replay"
)

// statusRecord is one entry of regular_status_update.json
type statusRecord struct {
	ActiveUser      string          `json:"active_user" validate:"required"`
	CurrentLocation *locationRecord `json:"current_location" validate:"required"`
	GameState       string          `json:"game_state" validate:"required"`
	TeamRole        string          `json:"team_role,omitempty"`

	IsInterpolated     *bool `json:"is_interpolated,omitempty"`
	IsConnectionActive *bool `json:"is_connection_active,omitempty"`
}

type locationRecord struct {
	Lat       float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64 `json:"lon" validate:"gte=-180,lte=180"`
	Timestamp int64   `json:"timestamp" validate:"gt=0"`
}

// caughtRecord is one entry of team_caught.json
type caughtRecord struct {
	RunawayActiveUser string `json:"runaway_active_user" validate:"required"`
	HunterActiveUser  string `json:"hunter_active_user" validate:"required"`
	Timestamp         string `json:"timestamp" validate:"required"`
}

// rangeRecord is one entry of interesting_timestamps.json
type rangeRecord struct {
	Start int64 `json:"start"`
	End   int64 `json:"end" validate:"gtefield=Start"`
}

// RecordError points at the offending record of a feed file
type RecordError struct {
	File  string
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("feed: %s record %d: %v", e.File, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

func (r statusRecord) entry() (replay.RawEntry, error) {
	state, err := replay.ParseGameState(r.GameState)
	if err != nil {
		return replay.RawEntry{}, err
	}
	role, err := replay.ParseTeamRole(r.TeamRole)
	if err != nil {
		return replay.RawEntry{}, err
	}
	return replay.RawEntry{
		ParticipantID:      r.ActiveUser,
		Lat:                r.CurrentLocation.Lat,
		Lon:                r.CurrentLocation.Lon,
		Timestamp:          r.CurrentLocation.Timestamp,
		GameState:          state,
		TeamRole:           role,
		IsInterpolated:     r.IsInterpolated,
		IsConnectionActive: r.IsConnectionActive,
	}, nil
}

func (r caughtRecord) event() (replay.CaptureEvent, error) {
	ts, err := replay.ParseCaptureTime(r.Timestamp)
	if err != nil {
		return replay.CaptureEvent{}, err
	}
	return replay.CaptureEvent{
		HunterID:  r.HunterActiveUser,
		RunawayID: r.RunawayActiveUser,
		Timestamp: ts,
	}, nil
}
