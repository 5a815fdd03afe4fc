package analysis

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"chase-replay/internal/replay"
)

// DefaultProximityMeters is the chaser/runner distance that makes a moment
// worth slowing down for
const DefaultProximityMeters = 50.0

// ProximityOptions configures FindInterestingRanges
type ProximityOptions struct {
	Meters float64

	// Running restricts results to ranges strictly inside the running phase
	// when HasRunning is set.
	Running    replay.TimeRange
	HasRunning bool
}

// FindInterestingRanges scans the grid for instants at which any chaser is
// within Meters of any runner and merges consecutive hits into ranges. A
// range ends at the first instant without a close pair; a range still open
// at the last instant ends there.
func FindInterestingRanges(grid *ResampledGrid, timeline replay.CatchTimeline, opts ProximityOptions) []replay.TimeRange {
	if grid == nil || grid.Len() == 0 {
		return nil
	}
	meters := opts.Meters
	if meters <= 0 {
		meters = DefaultProximityMeters
	}

	origin := orb.Point{grid.Rows[0][0].Lon, grid.Rows[0][0].Lat}
	index := NewProximityGrid(origin, meters)

	var ranges []replay.TimeRange
	open := false
	var start int64

	for k, t := range grid.Times {
		near := closePairAt(grid, k, t, timeline, index, meters)
		switch {
		case near && !open:
			open = true
			start = t
		case !near && open:
			open = false
			ranges = append(ranges, replay.TimeRange{Start: start, End: t})
		}
	}
	if open {
		ranges = append(ranges, replay.TimeRange{Start: start, End: grid.Times[grid.Len()-1]})
	}

	if !opts.HasRunning {
		return ranges
	}
	filtered := ranges[:0]
	for _, r := range ranges {
		if r.Start > opts.Running.Start && r.End < opts.Running.End {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// closePairAt indexes the runners at grid instant k and probes around every
// chaser.
func closePairAt(grid *ResampledGrid, k int, t int64, timeline replay.CatchTimeline,
	index *ProximityGrid, meters float64) bool {

	index.Clear()
	runners := 0
	for i, id := range grid.IDs {
		if !timeline.IsChaser(id, t) {
			index.Insert(uint32(i), grid.Rows[i][k].Position().Point())
			runners++
		}
	}
	if runners == 0 {
		return false
	}

	for i, id := range grid.IDs {
		if !timeline.IsChaser(id, t) {
			continue
		}
		p := grid.Rows[i][k].Position().Point()
		for _, j := range index.QueryRadius(p, meters) {
			if geo.Distance(p, grid.Rows[j][k].Position().Point()) < meters {
				return true
			}
		}
	}
	return false
}
