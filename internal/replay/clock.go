package replay

import (
	"errors"
	"math"
	"time"
)

const (
	// DefaultSpeedFactor replays two minutes of game per second
	DefaultSpeedFactor = 120.0
	// DefaultSlowMoFactor is the rate multiplier inside interesting ranges
	DefaultSlowMoFactor = 0.1
)

// ErrInvalidSpeed is returned for negative or non-finite speed factors
var ErrInvalidSpeed = errors.New("replay: speed factor must be a finite, non-negative number")

// PlaybackStatus is the two-state machine of the playback clock
type PlaybackStatus uint8

const (
	StatusPaused PlaybackStatus = iota
	StatusRunning
)

func (s PlaybackStatus) String() string {
	if s == StatusRunning {
		return "RUNNING"
	}
	return "PAUSED"
}

// MarshalText encodes the status by name
func (s PlaybackStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TimeRange is a closed interval of session time in milliseconds
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether t lies in [Start, End]
func (r TimeRange) Contains(t float64) bool {
	return t >= float64(r.Start) && t <= float64(r.End)
}

// Window is the fixed frame a playback runs in: the session span, the
// interesting ranges that trigger slow motion and the slow-motion rate.
type Window struct {
	MinTime      int64       `json:"minTime"`
	MaxTime      int64       `json:"maxTime"`
	Interesting  []TimeRange `json:"interesting"`
	SlowMoFactor float64     `json:"slowMoFactor"`
}

// PlaybackState is the whole mutable state of a replay. Every operation is a
// value method returning the next state; nothing is changed in place.
type PlaybackState struct {
	Window Window `json:"window"`

	// CurrentTime is kept fractional so slow playback does not stall on
	// millisecond rounding.
	CurrentTime        float64    `json:"currentTime"`
	Paused             bool       `json:"paused"`
	SpeedFactor        float64    `json:"speedFactor"`
	SlowMo             bool       `json:"slowMo"`
	LastFrameWallClock *time.Time `json:"lastFrameWallClock,omitempty"`
}

// NewPlaybackState starts paused at the beginning of the window
func NewPlaybackState(w Window, speedFactor float64) PlaybackState {
	if w.SlowMoFactor <= 0 {
		w.SlowMoFactor = DefaultSlowMoFactor
	}
	if speedFactor < 0 || math.IsNaN(speedFactor) || math.IsInf(speedFactor, 0) {
		speedFactor = DefaultSpeedFactor
	}
	return PlaybackState{
		Window:      w,
		CurrentTime: float64(w.MinTime),
		Paused:      true,
		SpeedFactor: speedFactor,
	}
}

// Status returns RUNNING or PAUSED
func (s PlaybackState) Status() PlaybackStatus {
	if s.Paused {
		return StatusPaused
	}
	return StatusRunning
}

// Time is the current session time truncated to whole milliseconds
func (s PlaybackState) Time() int64 {
	return int64(math.Floor(s.CurrentTime))
}

// Progress is the position inside the window in [0, 1]
func (s PlaybackState) Progress() float64 {
	span := float64(s.Window.MaxTime - s.Window.MinTime)
	if span <= 0 {
		return 1
	}
	return (s.CurrentTime - float64(s.Window.MinTime)) / span
}

// SlowMoActive reports whether the next advance runs at the slow-motion rate
func (s PlaybackState) SlowMoActive() bool {
	if !s.SlowMo {
		return false
	}
	for _, r := range s.Window.Interesting {
		if r.Contains(s.CurrentTime) {
			return true
		}
	}
	return false
}

// Rate is the session milliseconds played per wall-clock millisecond
func (s PlaybackState) Rate() float64 {
	if s.SlowMoActive() {
		return s.SpeedFactor * s.Window.SlowMoFactor
	}
	return s.SpeedFactor
}

// Advance moves a running clock forward by a wall-clock delta. The delta is
// split at the edges of interesting ranges, so a range shorter than one
// frame still plays slowed. Reaching the end of the window pauses playback.
func (s PlaybackState) Advance(delta time.Duration) PlaybackState {
	if s.Paused || delta <= 0 {
		return s
	}

	remaining := float64(delta) / float64(time.Millisecond)
	for remaining > 0 && s.CurrentTime < float64(s.Window.MaxTime) {
		rate := s.segmentRate()
		if rate <= 0 {
			break
		}
		target := s.CurrentTime + remaining*rate
		if edge, ok := s.nextEdge(); ok && edge < target {
			remaining -= (edge - s.CurrentTime) / rate
			s.CurrentTime = edge
			continue
		}
		s.CurrentTime = target
		remaining = 0
	}
	s.CurrentTime = s.clamp(s.CurrentTime)

	if s.CurrentTime >= float64(s.Window.MaxTime) {
		s.Paused = true
		s.LastFrameWallClock = nil
	}
	return s
}

// segmentRate is the rate from CurrentTime up to the next range edge. Ranges
// count as [Start, End) here so playback leaves a range at full speed.
func (s PlaybackState) segmentRate() float64 {
	if s.SlowMo {
		for _, r := range s.Window.Interesting {
			if s.CurrentTime >= float64(r.Start) && s.CurrentTime < float64(r.End) {
				return s.SpeedFactor * s.Window.SlowMoFactor
			}
		}
	}
	return s.SpeedFactor
}

// nextEdge is the closest range start or end after CurrentTime
func (s PlaybackState) nextEdge() (float64, bool) {
	if !s.SlowMo {
		return 0, false
	}
	edge, found := math.Inf(1), false
	for _, r := range s.Window.Interesting {
		for _, t := range [2]float64{float64(r.Start), float64(r.End)} {
			if t > s.CurrentTime && t < edge {
				edge, found = t, true
			}
		}
	}
	return edge, found
}

// Tick feeds a wall-clock reading from the frame driver. The first reading
// after playback (re)starts only sets the baseline, so time spent paused is
// never played back.
func (s PlaybackState) Tick(now time.Time) PlaybackState {
	if s.Paused {
		s.LastFrameWallClock = nil
		return s
	}
	if s.LastFrameWallClock == nil {
		s.LastFrameWallClock = &now
		return s
	}

	delta := now.Sub(*s.LastFrameWallClock)
	s.LastFrameWallClock = &now
	return s.Advance(delta)
}

// SeekTo jumps to t, clamped to the window, without touching the pause state
func (s PlaybackState) SeekTo(t int64) PlaybackState {
	s.CurrentTime = s.clamp(float64(t))
	return s
}

// SetSpeed changes the playback rate from the next advance on
func (s PlaybackState) SetSpeed(factor float64) (PlaybackState, error) {
	if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return s, ErrInvalidSpeed
	}
	s.SpeedFactor = factor
	return s, nil
}

// ToggleSlowMo switches slow motion inside interesting ranges on or off
func (s PlaybackState) ToggleSlowMo() PlaybackState {
	s.SlowMo = !s.SlowMo
	return s
}

// TogglePause flips between PAUSED and RUNNING. The wall-clock baseline is
// always dropped so the next tick re-baselines.
func (s PlaybackState) TogglePause() PlaybackState {
	s.Paused = !s.Paused
	s.LastFrameWallClock = nil
	return s
}

// Play switches to RUNNING if paused
func (s PlaybackState) Play() PlaybackState {
	if !s.Paused {
		return s
	}
	return s.TogglePause()
}

// Pause switches to PAUSED if running
func (s PlaybackState) Pause() PlaybackState {
	if s.Paused {
		return s
	}
	return s.TogglePause()
}

func (s PlaybackState) clamp(t float64) float64 {
	return math.Max(float64(s.Window.MinTime), math.Min(t, float64(s.Window.MaxTime)))
}
