package replay

import (
	"sort"
	"time"
)

// DefaultPingInterval is how often runners broadcast their position in the game
const DefaultPingInterval = 5 * time.Minute

// PingEvent is one periodic broadcast: the last reported position of every
// participant still in play at that tick.
type PingEvent struct {
	Time      int64             `json:"time"`
	Locations map[string]Sample `json:"locations"`
}

// PingInstants lists start+interval, start+2·interval, ... strictly before end
func PingInstants(start, end int64, interval time.Duration) []int64 {
	step := interval.Milliseconds()
	if step <= 0 {
		return nil
	}
	var instants []int64
	for p := start + step; p < end; p += step {
		instants = append(instants, p)
	}
	return instants
}

// DetectPings derives the ping broadcasts of the running phase.
//
// Only samples actually reported by a device are broadcast. For each tick the
// participant's sample just before the first one later than the tick is used;
// participants without such a sample, or already caught at its time, are left
// out. Without a complete running interval there are no pings.
func DetectPings(tracks map[string]Track, bounds SessionBounds, timeline CatchTimeline, interval time.Duration) []PingEvent {
	start, end, ok := bounds.RunningInterval()
	if !ok {
		return nil
	}
	instants := PingInstants(start, end, interval)
	if len(instants) == 0 {
		return nil
	}

	reported := make(map[string]Track, len(tracks))
	for id, track := range tracks {
		reported[id] = track.Real()
	}

	events := make([]PingEvent, 0, len(instants))
	for _, p := range instants {
		ev := PingEvent{Time: p, Locations: make(map[string]Sample)}
		for id, track := range reported {
			s, found := lastReportedAt(track, p)
			if !found {
				continue
			}
			if caughtAt, caught := timeline.CatchTime(id); caught && s.Time >= caughtAt {
				continue
			}
			ev.Locations[id] = s
		}
		events = append(events, ev)
	}
	return events
}

// lastReportedAt returns the sample preceding the first sample later than p
func lastReportedAt(track Track, p int64) (Sample, bool) {
	next := sort.Search(len(track), func(i int) bool {
		return track[i].Time > p
	})
	if next == 0 {
		return Sample{}, false
	}
	return track[next-1], true
}

// PingsBetween returns the pings with from <= Time <= to. events must be sorted.
func PingsBetween(events []PingEvent, from, to int64) []PingEvent {
	lo := sort.Search(len(events), func(i int) bool {
		return events[i].Time >= from
	})
	hi := sort.Search(len(events), func(i int) bool {
		return events[i].Time > to
	})
	if lo >= hi {
		return nil
	}
	return events[lo:hi]
}

// LatestPing returns the last ping at or before t
func LatestPing(events []PingEvent, t int64) (PingEvent, bool) {
	next := sort.Search(len(events), func(i int) bool {
		return events[i].Time > t
	})
	if next == 0 {
		return PingEvent{}, false
	}
	return events[next-1], true
}
