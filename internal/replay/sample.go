// Package replay turns recorded location pings of a pursuit game into a
// continuous, time-addressable replay: interpolated positions, roles, periodic
// ping broadcasts, trails and a playback clock.
package replay

import (
	"strings"

	"github.com/paulmach/orb"
)

// GameState is the game phase reported with every location fix
type GameState uint8

const (
	GameStateUnknown GameState = iota
	GameStateTeamCreation
	GameStateRunning
	GameStateOver
)

// String returns the wire name of the phase
func (s GameState) String() string {
	switch s {
	case GameStateTeamCreation:
		return "TEAM_CREATION_PHASE"
	case GameStateRunning:
		return "RUNNING"
	case GameStateOver:
		return "OVER"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the phase by its wire name
func (s GameState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseGameState maps a wire name to a GameState.
// Unknown values are rejected so they never reach per-frame code.
func ParseGameState(raw string) (GameState, error) {
	switch strings.TrimSpace(raw) {
	case "TEAM_CREATION_PHASE":
		return GameStateTeamCreation, nil
	case "RUNNING":
		return GameStateRunning, nil
	case "OVER":
		return GameStateOver, nil
	default:
		return GameStateUnknown, &InvalidGameStateError{Value: raw}
	}
}

// TeamRole is the side a participant reported being on. Feeds without
// team_role leave it TeamRoleUnknown.
type TeamRole uint8

const (
	TeamRoleUnknown TeamRole = iota
	TeamRoleHunter
	TeamRoleRunaways
)

// String returns the wire name of the role, empty when unknown
func (r TeamRole) String() string {
	switch r {
	case TeamRoleHunter:
		return "HUNTER"
	case TeamRoleRunaways:
		return "RUNAWAYS"
	default:
		return ""
	}
}

// MarshalText encodes the role by its wire name
func (r TeamRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseTeamRole maps a wire name to a TeamRole. An empty value means the
// feed did not report a role; anything else outside the known set is rejected.
func ParseTeamRole(raw string) (TeamRole, error) {
	switch strings.TrimSpace(raw) {
	case "":
		return TeamRoleUnknown, nil
	case "HUNTER":
		return TeamRoleHunter, nil
	case "RUNAWAYS":
		return TeamRoleRunaways, nil
	default:
		return TeamRoleUnknown, &InvalidTeamRoleError{Value: raw}
	}
}

// Sample is one location fix of one participant. Time is in epoch milliseconds.
type Sample struct {
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	Time               int64     `json:"time"`
	GameState          GameState `json:"gameState"`
	TeamRole           TeamRole  `json:"teamRole,omitempty"`
	IsInterpolated     bool      `json:"isInterpolated"`
	IsConnectionActive bool      `json:"isConnectionActive"`
}

// Position is a bare coordinate pair for the rendering sink
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position returns the coordinate of the sample
func (s Sample) Position() Position {
	return Position{Lat: s.Lat, Lon: s.Lon}
}

// Point returns the position in orb's (lon, lat) order
func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// RawEntry is a single ungrouped record of the location feed.
// Nil flags take their defaults: not interpolated, connection active.
type RawEntry struct {
	ParticipantID      string
	Lat                float64
	Lon                float64
	Timestamp          int64
	GameState          GameState
	TeamRole           TeamRole
	IsInterpolated     *bool
	IsConnectionActive *bool
}

func (e RawEntry) sample() Sample {
	s := Sample{
		Lat:                e.Lat,
		Lon:                e.Lon,
		Time:               e.Timestamp,
		GameState:          e.GameState,
		TeamRole:           e.TeamRole,
		IsConnectionActive: true,
	}
	if e.IsInterpolated != nil {
		s.IsInterpolated = *e.IsInterpolated
	}
	if e.IsConnectionActive != nil {
		s.IsConnectionActive = *e.IsConnectionActive
	}
	return s
}
