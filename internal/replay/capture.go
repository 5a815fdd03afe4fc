package replay

import (
	"strings"
	"time"
)

// CaptureEvent records a hunter catching a runaway
type CaptureEvent struct {
	HunterID  string `json:"hunterId"`
	RunawayID string `json:"runawayId"`
	Timestamp int64  `json:"timestamp"`
}

// CatchTimeline maps a participant to the instant it turned from runner into
// chaser. Participants that were never caught and never hunted are absent.
type CatchTimeline map[string]int64

// BuildCatchTimeline derives the timeline from the capture log in log order.
//
// Every runaway flips at its capture time; a runaway listed twice keeps the
// later entry. The hunter of the final entry is the seed hunter, who had no
// capture of its own and is a chaser from sessionStart. It is returned
// separately and is "" for an empty log.
func BuildCatchTimeline(events []CaptureEvent, sessionStart int64) (CatchTimeline, string) {
	timeline := make(CatchTimeline, len(events)+1)
	if len(events) == 0 {
		return timeline, ""
	}

	for _, ev := range events {
		timeline[ev.RunawayID] = ev.Timestamp
	}

	seed := events[len(events)-1].HunterID
	timeline[seed] = sessionStart
	return timeline, seed
}

// CatchTime returns when the participant became a chaser
func (c CatchTimeline) CatchTime(participantID string) (int64, bool) {
	at, ok := c[participantID]
	return at, ok
}

// IsChaser reports whether the participant hunts at time t
func (c CatchTimeline) IsChaser(participantID string, t int64) bool {
	at, ok := c[participantID]
	return ok && t >= at
}

// captureLayouts are tried for timestamps without a zone; they are read as UTC
var captureLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseCaptureTime converts a capture-log timestamp to epoch milliseconds.
// Timestamps carrying an offset are honored, all others are UTC.
func ParseCaptureTime(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimSuffix(value, " UTC")

	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UnixMilli(), nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05Z07:00", value); err == nil {
		return ts.UnixMilli(), nil
	}

	var lastErr error
	for _, layout := range captureLayouts {
		ts, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return ts.UnixMilli(), nil
		}
		lastErr = err
	}
	return 0, &TimestampError{Value: raw, Err: lastErr}
}
