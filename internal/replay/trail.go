package replay

import "time"

const (
	DefaultTailStep  = 20 * time.Second
	DefaultTailCount = 10
)

// TailPoint is one past position of a trail with its suggested opacity
type TailPoint struct {
	Position Position `json:"position"`
	Time     int64    `json:"time"`
	Opacity  float64  `json:"opacity"`
}

// TailPositions samples count evenly spaced past positions of a track.
//
// The newest point sits at t rounded down to a multiple of step, so trails do
// not jitter while t moves continuously. Opacity fades from 1-1/count for the
// newest point to 0 for the oldest.
func TailPositions(track Track, t int64, step time.Duration, count int) []TailPoint {
	if count <= 0 {
		return nil
	}
	return appendTail(make([]TailPoint, 0, count), track, t, step, count)
}

// appendTail is TailPositions writing into dst, for callers that reuse buffers
func appendTail(dst []TailPoint, track Track, t int64, step time.Duration, count int) []TailPoint {
	stepMS := step.Milliseconds()
	if stepMS <= 0 {
		stepMS = 1
	}

	rounded := floorDiv(t, stepMS) * stepMS
	for i := 0; i < count; i++ {
		at := rounded - int64(i)*stepMS
		s := LocationAt(track, at)
		dst = append(dst, TailPoint{
			Position: s.Position(),
			Time:     at,
			Opacity:  1 - float64(i+1)/float64(count),
		})
	}
	return dst
}

// floorDiv rounds toward negative infinity, unlike Go's integer division
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
