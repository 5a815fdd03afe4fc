package replay

import "sort"

// Track is the time-ordered location history of one participant.
// A Track built by BuildTracks is never empty.
type Track []Sample

// First returns the earliest sample
func (t Track) First() Sample {
	return t[0]
}

// Last returns the latest sample
func (t Track) Last() Sample {
	return t[len(t)-1]
}

// Real returns the samples that were actually reported by the device,
// dropping the ones flagged as interpolated. The receiver is not modified.
func (t Track) Real() Track {
	kept := make(Track, 0, len(t))
	for _, s := range t {
		if !s.IsInterpolated {
			kept = append(kept, s)
		}
	}
	return kept
}

// DegenerateIntervals lists every pair of adjacent samples sharing a timestamp
func (t Track) DegenerateIntervals(participantID string) []*DegenerateIntervalError {
	var out []*DegenerateIntervalError
	for i := 1; i < len(t); i++ {
		if t[i].Time == t[i-1].Time {
			out = append(out, &DegenerateIntervalError{
				ParticipantID: participantID,
				Time:          t[i].Time,
				Index:         i,
			})
		}
	}
	return out
}

// BuildTracks groups raw feed entries by participant and sorts each group by
// time. The sort is stable, so entries with equal timestamps keep their feed
// order.
func BuildTracks(entries []RawEntry) (map[string]Track, error) {
	if len(entries) == 0 {
		return nil, &EmptyInputError{Source: "location feed"}
	}

	tracks := make(map[string]Track)
	for _, e := range entries {
		tracks[e.ParticipantID] = append(tracks[e.ParticipantID], e.sample())
	}

	for _, track := range tracks {
		sort.SliceStable(track, func(i, j int) bool {
			return track[i].Time < track[j].Time
		})
	}

	return tracks, nil
}

// SortedIDs returns the participant ids of a track map in ascending order
func SortedIDs(tracks map[string]Track) []string {
	ids := make([]string, 0, len(tracks))
	for id := range tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
