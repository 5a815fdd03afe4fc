package replay

import (
	"errors"
	"testing"
)

func boolPtr(v bool) *bool {
	return &v
}

// TestBuildTracksEmpty verifies an empty feed aborts
func TestBuildTracksEmpty(t *testing.T) {
	_, err := BuildTracks(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Expected ErrEmptyInput, got %v", err)
	}
	var empty *EmptyInputError
	if !errors.As(err, &empty) || empty.Source != "location feed" {
		t.Errorf("Expected EmptyInputError for the location feed, got %v", err)
	}
}

// TestBuildTracks verifies grouping, ordering and flag defaults
func TestBuildTracks(t *testing.T) {
	entries := []RawEntry{
		{ParticipantID: "b", Timestamp: 30, Lat: 3},
		{ParticipantID: "a", Timestamp: 20, Lat: 2, IsInterpolated: boolPtr(true)},
		{ParticipantID: "a", Timestamp: 10, Lat: 1, IsConnectionActive: boolPtr(false)},
		{ParticipantID: "a", Timestamp: 20, Lat: 22},
	}

	tracks, err := BuildTracks(entries)
	if err != nil {
		t.Fatalf("BuildTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(tracks))
	}

	a := tracks["a"]
	if len(a) != 3 {
		t.Fatalf("Expected 3 samples for a, got %d", len(a))
	}
	if a[0].Time != 10 || a[1].Time != 20 || a[2].Time != 20 {
		t.Errorf("Track not sorted: %+v", a)
	}
	// equal timestamps keep feed order
	if a[1].Lat != 2 || a[2].Lat != 22 {
		t.Errorf("Expected stable order for equal timestamps, got %f then %f", a[1].Lat, a[2].Lat)
	}
	if a[0].IsConnectionActive {
		t.Error("Expected explicit connection flag to be kept")
	}
	if !a[1].IsInterpolated {
		t.Error("Expected explicit interpolated flag to be kept")
	}
	if a[2].IsInterpolated || !a[2].IsConnectionActive {
		t.Errorf("Expected defaults for nil flags, got %+v", a[2])
	}

	if ids := SortedIDs(tracks); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected [a b], got %v", ids)
	}
}

// TestTrackReal verifies interpolated fixes are dropped without touching the track
func TestTrackReal(t *testing.T) {
	tr := Track{
		{Time: 1},
		{Time: 2, IsInterpolated: true},
		{Time: 3},
	}
	kept := tr.Real()
	if len(kept) != 2 || kept[0].Time != 1 || kept[1].Time != 3 {
		t.Errorf("Unexpected real samples %+v", kept)
	}
	if len(tr) != 3 || !tr[1].IsInterpolated {
		t.Error("Real modified its receiver")
	}
	if tr.First().Time != 1 || tr.Last().Time != 3 {
		t.Error("First/Last returned wrong samples")
	}
}

// TestDegenerateIntervals verifies duplicate timestamps are found
func TestDegenerateIntervals(t *testing.T) {
	tr := Track{{Time: 1}, {Time: 1}, {Time: 2}, {Time: 3}, {Time: 3}}
	got := tr.DegenerateIntervals("x")
	if len(got) != 2 {
		t.Fatalf("Expected 2 intervals, got %d", len(got))
	}
	if got[0].Index != 1 || got[1].Index != 4 || got[1].Time != 3 {
		t.Errorf("Unexpected intervals %v %v", got[0], got[1])
	}
	if got[0].ParticipantID != "x" {
		t.Errorf("Expected participant x, got %s", got[0].ParticipantID)
	}
}

// TestParseGameState verifies the known phases and the rejection of others
func TestParseGameState(t *testing.T) {
	tests := []struct {
		raw     string
		want    GameState
		wantErr bool
	}{
		{"TEAM_CREATION_PHASE", GameStateTeamCreation, false},
		{"RUNNING", GameStateRunning, false},
		{" OVER ", GameStateOver, false},
		{"running", GameStateUnknown, true},
		{"", GameStateUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseGameState(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGameState(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
			var invalid *InvalidGameStateError
			if tt.wantErr && !errors.As(err, &invalid) {
				t.Errorf("Expected InvalidGameStateError, got %T", err)
			}
		})
	}
}
