package replay

import (
	"math"

	"github.com/paulmach/orb"
)

// SessionBounds summarizes all tracks of a session: the covered time span,
// the running phase and the bounding box used for the initial map view.
type SessionBounds struct {
	MinTime int64 `json:"minTime"`
	MaxTime int64 `json:"maxTime"`

	// MinRunningTime is the first RUNNING report of any participant,
	// MaxRunningTime the first OVER report at or after it.
	MinRunningTime int64 `json:"minRunningTime"`
	MaxRunningTime int64 `json:"maxRunningTime"`
	HasRunning     bool  `json:"hasRunning"`
	HasOver        bool  `json:"hasOver"`

	CenterLat float64   `json:"centerLat"`
	CenterLon float64   `json:"centerLon"`
	Box       orb.Bound `json:"-"`
}

// RunningInterval returns the running phase when both of its ends are known
func (b SessionBounds) RunningInterval() (start, end int64, ok bool) {
	if !b.HasRunning || !b.HasOver {
		return 0, 0, false
	}
	return b.MinRunningTime, b.MaxRunningTime, true
}

// Duration is the length of the session in milliseconds
func (b SessionBounds) Duration() int64 {
	return b.MaxTime - b.MinTime
}

// ComputeBounds scans every sample once. tracks must not be empty.
func ComputeBounds(tracks map[string]Track) SessionBounds {
	b := SessionBounds{
		MinTime: math.MaxInt64,
		MaxTime: math.MinInt64,
	}
	firstRunning := int64(math.MaxInt64)
	boxSet := false

	for _, track := range tracks {
		for _, s := range track {
			if s.Time < b.MinTime {
				b.MinTime = s.Time
			}
			if s.Time > b.MaxTime {
				b.MaxTime = s.Time
			}
			if s.GameState == GameStateRunning && s.Time < firstRunning {
				firstRunning = s.Time
			}

			p := orb.Point{s.Lon, s.Lat}
			if !boxSet {
				b.Box = orb.Bound{Min: p, Max: p}
				boxSet = true
			} else {
				b.Box = b.Box.Extend(p)
			}
		}
	}

	if firstRunning != math.MaxInt64 {
		b.HasRunning = true
		b.MinRunningTime = firstRunning

		firstOver := int64(math.MaxInt64)
		for _, track := range tracks {
			for _, s := range track {
				if s.GameState == GameStateOver && s.Time >= firstRunning && s.Time < firstOver {
					firstOver = s.Time
				}
			}
		}
		if firstOver != math.MaxInt64 {
			b.HasOver = true
			b.MaxRunningTime = firstOver
		}
	}

	center := b.Box.Center()
	b.CenterLon, b.CenterLat = center[0], center[1]
	return b
}
