package replay

import (
	"errors"
	"testing"
	"time"
)

// TestBuildCatchTimelineEmpty verifies an empty log has no chasers
func TestBuildCatchTimelineEmpty(t *testing.T) {
	timeline, seed := BuildCatchTimeline(nil, t0)
	if seed != "" {
		t.Errorf("Expected no seed hunter, got '%s'", seed)
	}
	if len(timeline) != 0 {
		t.Errorf("Expected empty timeline, got %v", timeline)
	}
	if timeline.IsChaser("anyone", t0+1) {
		t.Error("Nobody should be a chaser without captures")
	}
}

// TestBuildCatchTimeline verifies catch times and the seed hunter
func TestBuildCatchTimeline(t *testing.T) {
	events := []CaptureEvent{
		{HunterID: "b", RunawayID: "c", Timestamp: 300},
		{HunterID: "a", RunawayID: "b", Timestamp: 200},
		{HunterID: "b", RunawayID: "c", Timestamp: 400},
		{HunterID: "s", RunawayID: "a", Timestamp: 100},
	}
	timeline, seed := BuildCatchTimeline(events, 50)

	if seed != "s" {
		t.Fatalf("Expected seed hunter 's', got '%s'", seed)
	}

	tests := []struct {
		id   string
		want int64
	}{
		{"s", 50},
		{"a", 100},
		{"b", 200},
		{"c", 400}, // listed twice, later entry wins
	}
	for _, tt := range tests {
		at, ok := timeline.CatchTime(tt.id)
		if !ok || at != tt.want {
			t.Errorf("CatchTime(%q) = %d, %v; want %d", tt.id, at, ok, tt.want)
		}
	}

	if _, ok := timeline.CatchTime("nobody"); ok {
		t.Error("Unknown participant should have no catch time")
	}
}

// TestIsChaserBoundary verifies the switch happens exactly at the catch time
func TestIsChaserBoundary(t *testing.T) {
	timeline := CatchTimeline{"a": 1000}
	if timeline.IsChaser("a", 999) {
		t.Error("Expected runner before the catch")
	}
	if !timeline.IsChaser("a", 1000) {
		t.Error("Expected chaser at the catch")
	}
	if !timeline.IsChaser("a", 5000) {
		t.Error("Expected chaser after the catch")
	}
}

func TestParseCaptureTime(t *testing.T) {
	noon := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{"utc suffix", "2024-05-04 12:00:00 UTC", noon, false},
		{"no zone", "2024-05-04 12:00:00", noon, false},
		{"T separator", "2024-05-04T12:00:00", noon, false},
		{"rfc3339", "2024-05-04T12:00:00Z", noon, false},
		{"offset", "2024-05-04T14:00:00+02:00", noon, false},
		{"space offset", "2024-05-04 10:00:00-02:00", noon, false},
		{"fraction", "2024-05-04 12:00:00.250 UTC", noon + 250, false},
		{"garbage", "yesterday", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCaptureTime(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCaptureTime(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				var tsErr *TimestampError
				if !errors.As(err, &tsErr) || tsErr.Value != tt.raw {
					t.Errorf("Expected TimestampError for %q, got %v", tt.raw, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
