package replay

// Role is what the rendering sink should show a participant as
type Role uint8

const (
	RoleRunner Role = iota
	RoleChaser
	RoleInactive
)

// String returns the display name of the role
func (r Role) String() string {
	switch r {
	case RoleRunner:
		return "RUNNER"
	case RoleChaser:
		return "CHASER"
	case RoleInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the role by its display name
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// RoleAt classifies a participant at time t from the phase of its
// interpolated sample and the catch timeline.
//
// Before teams are formed only chasers are colored; after the game is over
// chasers are shown as inactive.
func RoleAt(participantID string, state GameState, t int64, timeline CatchTimeline) Role {
	isChaser := timeline.IsChaser(participantID, t)

	switch {
	case state == GameStateTeamCreation && !isChaser:
		return RoleInactive
	case state == GameStateOver && isChaser:
		return RoleInactive
	case isChaser:
		return RoleChaser
	default:
		return RoleRunner
	}
}

// HunterSince returns, per participant, the time of the first fix in which it
// reported itself as a hunter. Participants that never did are absent.
func HunterSince(tracks map[string]Track) map[string]int64 {
	since := make(map[string]int64)
	for id, track := range tracks {
		for _, s := range track {
			if s.TeamRole == TeamRoleHunter {
				since[id] = s.Time
				break
			}
		}
	}
	return since
}

// reportsTeamRole reports whether any fix of the track carries a team role
func reportsTeamRole(track Track) bool {
	for _, s := range track {
		if s.TeamRole != TeamRoleUnknown {
			return true
		}
	}
	return false
}
