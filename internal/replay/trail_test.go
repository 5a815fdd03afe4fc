package replay

import (
	"testing"
	"time"
)

func linearTrack() Track {
	tr := make(Track, 0, 11)
	for i := 0; i <= 10; i++ {
		tr = append(tr, Sample{Time: int64(i) * 60_000, Lat: float64(i), Lon: float64(-i)})
	}
	return tr
}

// TestTailPositions verifies the trail is anchored to the step grid
func TestTailPositions(t *testing.T) {
	tr := linearTrack()

	tail := TailPositions(tr, 5*60_000+25_000, 20*time.Second, 3)
	if len(tail) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(tail))
	}

	wantTimes := []int64{320_000, 300_000, 280_000}
	for i, p := range tail {
		if p.Time != wantTimes[i] {
			t.Errorf("Point %d: expected time %d, got %d", i, wantTimes[i], p.Time)
		}
		want := LocationAt(tr, p.Time).Position()
		if p.Position != want {
			t.Errorf("Point %d: expected %+v, got %+v", i, want, p.Position)
		}
	}

	// newest point is most opaque, oldest fully transparent
	if tail[0].Opacity <= tail[1].Opacity || tail[2].Opacity != 0 {
		t.Errorf("Unexpected opacities %f %f %f", tail[0].Opacity, tail[1].Opacity, tail[2].Opacity)
	}
}

// TestTailPositionsStable verifies the trail does not move within one step
func TestTailPositionsStable(t *testing.T) {
	tr := linearTrack()
	a := TailPositions(tr, 300_001, 20*time.Second, 5)
	b := TailPositions(tr, 319_999, 20*time.Second, 5)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("Point %d moved inside one step: %+v vs %+v", i, a[i], b[i])
		}
	}
}

// TestTailPositionsBeforeTrack verifies the trail clamps to the first fix
func TestTailPositionsBeforeTrack(t *testing.T) {
	tr := linearTrack()
	tail := TailPositions(tr, 10_000, 20*time.Second, 4)
	first := tr.First().Position()
	for i, p := range tail {
		if p.Position != first {
			t.Errorf("Point %d: expected the first fix, got %+v", i, p.Position)
		}
	}
	if tail[3].Time >= 0 {
		t.Errorf("Expected oldest point before the track, got %d", tail[3].Time)
	}
}

func TestTailPositionsEmpty(t *testing.T) {
	if tail := TailPositions(linearTrack(), 100, time.Second, 0); tail != nil {
		t.Errorf("Expected nil for zero count, got %v", tail)
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{7, 2, 3},
		{-7, 2, -4},
		{-8, 2, -4},
		{0, 5, 0},
		{-1, 20_000, -1},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
