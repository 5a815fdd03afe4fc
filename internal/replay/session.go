package replay

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionInput is everything loaded for one recorded game
type SessionInput struct {
	Entries     []RawEntry
	Captures    []CaptureEvent
	Names       map[string]string
	Interesting []TimeRange
}

// DefaultCatchTolerance allows for a couple of missed status updates
// between a capture and the caught player's first hunter report
const DefaultCatchTolerance = 2 * time.Minute

// Options tune the derived data of a session
type Options struct {
	PingInterval time.Duration
	TailStep     time.Duration
	TailCount    int
	MarkerSize   float64

	// CatchTolerance bounds how far a capture may lie from the first fix
	// reporting the hunter team role before a warning is raised.
	CatchTolerance time.Duration
}

// DefaultOptions mirrors the in-game broadcast rate and a short trail
func DefaultOptions() Options {
	return Options{
		PingInterval: DefaultPingInterval,
		TailStep:     DefaultTailStep,
		TailCount:    DefaultTailCount,
		MarkerSize:   20,

		CatchTolerance: DefaultCatchTolerance,
	}
}

// Session is the read-only result of loading one game. It is built once and
// shared by every frame; switching games means building a new Session.
type Session struct {
	ID       string
	LoadedAt time.Time

	Tracks      map[string]Track
	IDs         []string // sorted participant ids with a track
	Names       map[string]string
	Bounds      SessionBounds
	Timeline    CatchTimeline
	SeedHunter  string
	Captures    []CaptureEvent
	Pings       []PingEvent
	Interesting []TimeRange
	Options     Options

	// Warnings holds recovered load problems: *MissingTrackError and
	// *DegenerateIntervalError.
	Warnings []error
}

// NewSession builds all derived data of a game. It fails only when there is
// nothing to replay.
func NewSession(in SessionInput, opts Options) (*Session, error) {
	defaults := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.TailStep <= 0 {
		opts.TailStep = defaults.TailStep
	}
	if opts.TailCount < 0 {
		opts.TailCount = 0
	}
	if opts.MarkerSize <= 0 {
		opts.MarkerSize = defaults.MarkerSize
	}
	if opts.CatchTolerance <= 0 {
		opts.CatchTolerance = defaults.CatchTolerance
	}

	tracks, err := BuildTracks(in.Entries)
	if err != nil {
		return nil, err
	}

	bounds := ComputeBounds(tracks)
	timeline, seed := BuildCatchTimeline(in.Captures, bounds.MinTime)

	names := in.Names
	if names == nil {
		names = map[string]string{}
	}

	captures := make([]CaptureEvent, len(in.Captures))
	copy(captures, in.Captures)
	sort.SliceStable(captures, func(i, j int) bool {
		return captures[i].Timestamp < captures[j].Timestamp
	})

	s := &Session{
		ID:          uuid.New().String(),
		LoadedAt:    time.Now(),
		Tracks:      tracks,
		IDs:         SortedIDs(tracks),
		Names:       names,
		Bounds:      bounds,
		Timeline:    timeline,
		SeedHunter:  seed,
		Captures:    captures,
		Interesting: in.Interesting,
		Options:     opts,
	}
	s.Warnings = s.diagnose(in.Captures)
	s.Pings = DetectPings(tracks, bounds, timeline, opts.PingInterval)

	return s, nil
}

// diagnose collects the recoverable problems of the input
func (s *Session) diagnose(captures []CaptureEvent) []error {
	var warnings []error
	seen := make(map[string]bool)

	missing := func(id, by string) {
		if id == "" || seen[id] {
			return
		}
		if _, ok := s.Tracks[id]; ok {
			return
		}
		seen[id] = true
		warnings = append(warnings, &MissingTrackError{ParticipantID: id, ReferencedBy: by})
	}

	for _, ev := range captures {
		missing(ev.HunterID, "capture")
		missing(ev.RunawayID, "capture")
	}
	nameIDs := make([]string, 0, len(s.Names))
	for id := range s.Names {
		nameIDs = append(nameIDs, id)
	}
	sort.Strings(nameIDs)
	for _, id := range nameIDs {
		missing(id, "names")
	}

	for _, id := range s.IDs {
		for _, d := range s.Tracks[id].DegenerateIntervals(id) {
			warnings = append(warnings, d)
		}
	}
	return append(warnings, s.checkTeamRoles()...)
}

// checkTeamRoles compares the catch timeline with the team_role each
// participant reported. Tracks without any role are not checked. The seed
// hunter has no capture time of its own, so only its role is checked.
func (s *Session) checkTeamRoles() []error {
	var warnings []error
	since := HunterSince(s.Tracks)
	tolerance := s.Options.CatchTolerance.Milliseconds()

	for _, id := range s.IDs {
		if !reportsTeamRole(s.Tracks[id]) {
			continue
		}
		caughtAt, caught := s.Timeline.CatchTime(id)
		hunterFrom, hunted := since[id]

		switch {
		case !caught && !hunted:
			continue
		case !caught:
			warnings = append(warnings, &CatchMismatchError{ParticipantID: id, HunterSince: hunterFrom})
		case !hunted:
			warnings = append(warnings, &CatchMismatchError{ParticipantID: id, CaughtAt: caughtAt})
		case id == s.SeedHunter:
			continue
		case abs(hunterFrom-caughtAt) > tolerance:
			warnings = append(warnings, &CatchMismatchError{ParticipantID: id, CaughtAt: caughtAt, HunterSince: hunterFrom})
		}
	}
	return warnings
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Name returns the display label of a participant, falling back to its id
func (s *Session) Name(participantID string) string {
	if name, ok := s.Names[participantID]; ok && name != "" {
		return name
	}
	return participantID
}

// Window is the playback window of the session
func (s *Session) Window(slowMoFactor float64) Window {
	return Window{
		MinTime:      s.Bounds.MinTime,
		MaxTime:      s.Bounds.MaxTime,
		Interesting:  s.Interesting,
		SlowMoFactor: slowMoFactor,
	}
}

// CapturesBetween returns the captures with from < Timestamp <= to
func (s *Session) CapturesBetween(from, to int64) []CaptureEvent {
	var out []CaptureEvent
	for _, ev := range s.Captures {
		if ev.Timestamp > from && ev.Timestamp <= to {
			out = append(out, ev)
		}
	}
	return out
}
