package analysis

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"chase-replay/internal/replay"
)

// ExportGeoJSON returns one LineString feature per participant with the real
// (non-interpolated) fixes in time order. Properties carry the id, display
// name, first and last fix time, the catch time when the participant was
// caught, and the per-vertex timestamps.
func ExportGeoJSON(s *replay.Session) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, id := range s.IDs {
		track := s.Tracks[id].Real()
		if len(track) == 0 {
			continue
		}

		line := make(orb.LineString, 0, len(track))
		times := make([]int64, 0, len(track))
		for _, sample := range track {
			line = append(line, sample.Position().Point())
			times = append(times, sample.Time)
		}

		var geom orb.Geometry = line
		if len(line) == 1 {
			geom = line[0]
		}

		f := geojson.NewFeature(geom)
		f.ID = id
		f.Properties["id"] = id
		f.Properties["name"] = s.Name(id)
		f.Properties["start"] = track.First().Time
		f.Properties["end"] = track.Last().Time
		f.Properties["times"] = times
		if at, ok := s.Timeline.CatchTime(id); ok {
			f.Properties["caughtAt"] = at
			f.Properties["seedHunter"] = id == s.SeedHunter
		}
		fc.Append(f)
	}

	fc.BBox = geojson.NewBBox(s.Bounds.Box)
	return fc
}
