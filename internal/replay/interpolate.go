package replay

import "sort"

// LocationAt returns where the participant of track was at time t.
//
// Before the first sample and after the last one the boundary sample is
// returned unchanged. In between, lat/lon are interpolated linearly between
// the last sample at or before t and the first sample after t. Phase, role
// and connection flag come from the earlier sample, so a phase change is
// never shown before it happened.
func LocationAt(track Track, t int64) Sample {
	if t <= track[0].Time {
		return track[0]
	}

	next := sort.Search(len(track), func(i int) bool {
		return track[i].Time > t
	})
	if next == len(track) {
		return track[len(track)-1]
	}

	first, second := track[next-1], track[next]
	factor := interpolationFactor(first.Time, second.Time, t)

	return Sample{
		Lat:                first.Lat + factor*(second.Lat-first.Lat),
		Lon:                first.Lon + factor*(second.Lon-first.Lon),
		Time:               t,
		GameState:          first.GameState,
		TeamRole:           first.TeamRole,
		IsInterpolated:     first.IsInterpolated || factor > 0,
		IsConnectionActive: first.IsConnectionActive,
	}
}

// interpolationFactor is the position of t inside [from, to], 0 for an empty interval
func interpolationFactor(from, to, t int64) float64 {
	span := to - from
	if span <= 0 {
		return 0
	}
	return float64(t-from) / float64(span)
}
