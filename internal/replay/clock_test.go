package replay

import (
	"errors"
	"math"
	"testing"
	"time"
)

func testWindow() Window {
	return Window{
		MinTime:      1_000,
		MaxTime:      1_000_000,
		Interesting:  []TimeRange{{Start: 100_000, End: 200_000}},
		SlowMoFactor: 0.1,
	}
}

// TestNewPlaybackState verifies a new clock is paused at the start
func TestNewPlaybackState(t *testing.T) {
	s := NewPlaybackState(testWindow(), 120)
	if !s.Paused || s.Status() != StatusPaused {
		t.Error("Expected a new clock to be paused")
	}
	if s.Time() != 1_000 {
		t.Errorf("Expected time 1000, got %d", s.Time())
	}
	if s.Progress() != 0 {
		t.Errorf("Expected progress 0, got %f", s.Progress())
	}

	s = NewPlaybackState(Window{MinTime: 0, MaxTime: 10}, -5)
	if s.SpeedFactor != DefaultSpeedFactor {
		t.Errorf("Expected invalid speed to fall back to %f, got %f", DefaultSpeedFactor, s.SpeedFactor)
	}
	if s.Window.SlowMoFactor != DefaultSlowMoFactor {
		t.Errorf("Expected default slow-mo factor, got %f", s.Window.SlowMoFactor)
	}
}

// TestAdvance verifies session time moves at speed times wall time
func TestAdvance(t *testing.T) {
	s := NewPlaybackState(testWindow(), 120).Play()

	next := s.Advance(time.Second)
	if next.Time() != 121_000 {
		t.Errorf("Expected time 121000, got %d", next.Time())
	}
	if s.Time() != 1_000 {
		t.Error("Advance modified its receiver")
	}

	paused := next.Pause().Advance(time.Hour)
	if paused.Time() != next.Time() {
		t.Error("A paused clock should not advance")
	}

	if back := next.Advance(-time.Second); back.Time() != next.Time() {
		t.Error("A negative delta should not move the clock")
	}
}

// TestAdvanceClampsAndPauses verifies the end of the window stops playback
func TestAdvanceClampsAndPauses(t *testing.T) {
	s := NewPlaybackState(testWindow(), 1_000).Play()
	s = s.Advance(time.Hour)

	if s.Time() != 1_000_000 {
		t.Errorf("Expected clamp at 1000000, got %d", s.Time())
	}
	if !s.Paused {
		t.Error("Expected PAUSED at the end of the window")
	}
	if s.LastFrameWallClock != nil {
		t.Error("Expected the wall-clock baseline to be dropped at the end")
	}
	if s.Progress() != 1 {
		t.Errorf("Expected progress 1, got %f", s.Progress())
	}
}

// TestAdvanceSlowMo verifies the slower rate inside interesting ranges
func TestAdvanceSlowMo(t *testing.T) {
	s := NewPlaybackState(testWindow(), 100).SeekTo(150_000).Play()

	if s.Rate() != 100 {
		t.Errorf("Expected full rate with slow motion off, got %f", s.Rate())
	}

	s = s.ToggleSlowMo()
	if !s.SlowMoActive() {
		t.Fatal("Expected slow motion inside the range")
	}
	if math.Abs(s.Rate()-10) > 1e-9 {
		t.Errorf("Expected rate 10, got %f", s.Rate())
	}

	next := s.Advance(time.Second)
	if next.Time() != 160_000 {
		t.Errorf("Expected time 160000, got %d", next.Time())
	}

	outside := next.SeekTo(500_000)
	if outside.SlowMoActive() {
		t.Error("Slow motion should not apply outside interesting ranges")
	}
}

// TestAdvanceShortRange verifies a range shorter than one frame is still
// played slowed, with the frame split at the range edges
func TestAdvanceShortRange(t *testing.T) {
	w := Window{
		MinTime:      0,
		MaxTime:      100_000,
		Interesting:  []TimeRange{{Start: 1_000, End: 3_000}},
		SlowMoFactor: 0.1,
	}

	tests := []struct {
		name   string
		slowMo bool
		want   []int64
	}{
		// 40 ms frames at x100 cover 4000 ms at full speed and 400 ms slowed
		{"slow motion off", false, []int64{4_000, 8_000, 12_000}},
		{"slow motion on", true, []int64{1_300, 1_700, 2_100, 2_500, 2_900, 6_000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPlaybackState(w, 100).Play()
			if tt.slowMo {
				s = s.ToggleSlowMo()
			}
			for i, want := range tt.want {
				s = s.Advance(40 * time.Millisecond)
				if s.Time() != want {
					t.Fatalf("Frame %d: expected time %d, got %d (%f)", i, want, s.Time(), s.CurrentTime)
				}
			}
		})
	}
}

// TestAdvanceAdjacentRanges verifies back-to-back ranges keep the slow rate
// and a speed of zero holds the clock
func TestAdvanceAdjacentRanges(t *testing.T) {
	w := Window{
		MinTime:      0,
		MaxTime:      100_000,
		Interesting:  []TimeRange{{Start: 0, End: 500}, {Start: 500, End: 1_000}},
		SlowMoFactor: 0.5,
	}
	s := NewPlaybackState(w, 10).ToggleSlowMo().Play()

	// 150 ms at x5 crosses the shared edge at 500 without speeding up
	s = s.Advance(150 * time.Millisecond)
	if s.Time() != 750 {
		t.Errorf("Expected time 750, got %d", s.Time())
	}
	// 100 ms: 50 ms slowed to the end at 1000, then 50 ms at x10
	s = s.Advance(100 * time.Millisecond)
	if s.Time() != 1_500 {
		t.Errorf("Expected time 1500, got %d", s.Time())
	}

	frozen, _ := s.SetSpeed(0)
	if got := frozen.Advance(time.Second); got.Time() != s.Time() {
		t.Errorf("Expected speed 0 to hold time %d, got %d", s.Time(), got.Time())
	}
}

// TestAdvanceFractional verifies very slow playback still progresses
func TestAdvanceFractional(t *testing.T) {
	s := NewPlaybackState(testWindow(), 0.5).Play()
	for i := 0; i < 100; i++ {
		s = s.Advance(time.Millisecond)
	}
	if s.Time() != 1_050 {
		t.Errorf("Expected time 1050 after 100 half-millisecond steps, got %d (%f)", s.Time(), s.CurrentTime)
	}
}

// TestTickRebaselines verifies paused wall time is never played back
func TestTickRebaselines(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := NewPlaybackState(testWindow(), 1).Play()

	s = s.Tick(start)
	if s.Time() != 1_000 {
		t.Errorf("First tick should only set the baseline, got time %d", s.Time())
	}
	if s.LastFrameWallClock == nil || !s.LastFrameWallClock.Equal(start) {
		t.Fatal("Expected baseline to be set")
	}

	s = s.Tick(start.Add(500 * time.Millisecond))
	if s.Time() != 1_500 {
		t.Errorf("Expected time 1500, got %d", s.Time())
	}

	// a long pause followed by play re-baselines
	s = s.Pause()
	s = s.Tick(start.Add(time.Hour))
	s = s.Play()
	s = s.Tick(start.Add(2 * time.Hour))
	if s.Time() != 1_500 {
		t.Errorf("Expected paused time to be skipped, got %d", s.Time())
	}
	s = s.Tick(start.Add(2*time.Hour + 100*time.Millisecond))
	if s.Time() != 1_600 {
		t.Errorf("Expected time 1600, got %d", s.Time())
	}
}

func TestSeekTo(t *testing.T) {
	tests := []struct {
		name string
		to   int64
		want int64
	}{
		{"inside", 500_000, 500_000},
		{"before start", -5, 1_000},
		{"after end", 9_999_999, 1_000_000},
		{"at start", 1_000, 1_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPlaybackState(testWindow(), 1).Play()
			got := s.SeekTo(tt.to)
			if got.Time() != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got.Time())
			}
			if got.Paused {
				t.Error("SeekTo should keep the pause state")
			}
		})
	}
}

func TestSetSpeed(t *testing.T) {
	tests := []struct {
		name    string
		factor  float64
		wantErr bool
	}{
		{"normal", 60, false},
		{"zero", 0, false},
		{"negative", -1, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPlaybackState(testWindow(), 120)
			got, err := s.SetSpeed(tt.factor)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSpeed) {
					t.Fatalf("Expected ErrInvalidSpeed, got %v", err)
				}
				if got.SpeedFactor != 120 {
					t.Errorf("Expected speed unchanged, got %f", got.SpeedFactor)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.SpeedFactor != tt.factor {
				t.Errorf("Expected speed %f, got %f", tt.factor, got.SpeedFactor)
			}
		})
	}
}

// TestTogglePause verifies the state machine and the baseline reset
func TestTogglePause(t *testing.T) {
	now := time.Now()
	s := NewPlaybackState(testWindow(), 1)

	s = s.TogglePause()
	if s.Status() != StatusRunning {
		t.Fatal("Expected RUNNING after toggle")
	}
	s = s.Tick(now)
	s = s.TogglePause()
	if s.Status() != StatusPaused || s.LastFrameWallClock != nil {
		t.Error("Expected PAUSED without baseline after second toggle")
	}

	if s.Pause().Status() != StatusPaused {
		t.Error("Pause on a paused clock should stay paused")
	}
	if s.Play().Play().Status() != StatusRunning {
		t.Error("Play on a running clock should stay running")
	}
}

// TestProgressEmptyWindow verifies a zero-length game reports completion
func TestProgressEmptyWindow(t *testing.T) {
	s := NewPlaybackState(Window{MinTime: 5, MaxTime: 5}, 1)
	if s.Progress() != 1 {
		t.Errorf("Expected progress 1, got %f", s.Progress())
	}
}
