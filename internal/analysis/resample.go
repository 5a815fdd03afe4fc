// Package analysis derives offline artifacts from a recorded game: the
// running phase, an equidistant resampling of all tracks, the time ranges in
// which chasers came close to runners and a GeoJSON export of the tracks.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"chase-replay/internal/replay"
)

// DefaultResampleStep matches the one-second grid of the conversion tooling
const DefaultResampleStep = time.Second

// ErrNoCommonWindow is returned when the tracks do not overlap in time
var ErrNoCommonWindow = errors.New("analysis: tracks share no common time window")

// ResampledGrid holds every participant on the same time axis.
// Rows[i][k] is participant IDs[i] at Times[k].
type ResampledGrid struct {
	Times []int64
	IDs   []string
	Rows  [][]replay.Sample
}

// RunningInterval returns the first RUNNING report and the first OVER report
// after it, across all tracks.
func RunningInterval(tracks map[string]replay.Track) (start, end int64, ok bool) {
	if len(tracks) == 0 {
		return 0, 0, false
	}
	return replay.ComputeBounds(tracks).RunningInterval()
}

// HunterSince returns the first fix per participant that reported the HUNTER
// team role. Participants that never did, or whose feed has no roles, are absent.
func HunterSince(tracks map[string]replay.Track) map[string]int64 {
	return replay.HunterSince(tracks)
}

// Resample evaluates every track on an equidistant grid spanning the window
// all tracks cover, [max(first), min(last)]. Values between samples are
// linearly interpolated.
func Resample(tracks map[string]replay.Track, step time.Duration) (*ResampledGrid, error) {
	if len(tracks) == 0 {
		return nil, &replay.EmptyInputError{Source: "tracks"}
	}
	stepMs := step.Milliseconds()
	if stepMs <= 0 {
		return nil, fmt.Errorf("analysis: resample step must be at least 1ms, got %s", step)
	}

	ids := replay.SortedIDs(tracks)
	start, end := tracks[ids[0]].First().Time, tracks[ids[0]].Last().Time
	for _, id := range ids[1:] {
		if first := tracks[id].First().Time; first > start {
			start = first
		}
		if last := tracks[id].Last().Time; last < end {
			end = last
		}
	}
	if start > end {
		return nil, ErrNoCommonWindow
	}

	n := int((end-start)/stepMs) + 1
	grid := &ResampledGrid{
		Times: make([]int64, n),
		IDs:   ids,
		Rows:  make([][]replay.Sample, len(ids)),
	}
	for k := range grid.Times {
		grid.Times[k] = start + int64(k)*stepMs
	}
	for i, id := range ids {
		row := make([]replay.Sample, n)
		for k, t := range grid.Times {
			row[k] = replay.LocationAt(tracks[id], t)
		}
		grid.Rows[i] = row
	}
	return grid, nil
}

// Len is the number of grid instants
func (g *ResampledGrid) Len() int {
	return len(g.Times)
}
