package replay

import (
	"testing"
	"time"
)

// TestPingInstants verifies the tick schedule excludes the end
func TestPingInstants(t *testing.T) {
	got := PingInstants(0, 1_200_000, 5*time.Minute)
	want := []int64{300_000, 600_000, 900_000}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Instant %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestPingInstantsEdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		start, end int64
		interval   time.Duration
		want       int
	}{
		{"zero interval", 0, 1_000_000, 0, 0},
		{"negative interval", 0, 1_000_000, -time.Minute, 0},
		{"shorter than interval", 0, 299_999, 5 * time.Minute, 0},
		{"exactly one interval", 0, 300_000, 5 * time.Minute, 0},
		{"just over one interval", 0, 300_001, 5 * time.Minute, 1},
		{"end before start", 1_000_000, 0, time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PingInstants(tt.start, tt.end, tt.interval); len(got) != tt.want {
				t.Errorf("Expected %d instants, got %v", tt.want, got)
			}
		})
	}
}

// TestPingInstantsSpacing verifies every instant is inside the interval and
// evenly spaced
func TestPingInstantsSpacing(t *testing.T) {
	start, end := int64(12_345), int64(12_345+7_777_777)
	step := time.Minute
	got := PingInstants(start, end, step)
	for i, p := range got {
		if p <= start || p >= end {
			t.Errorf("Instant %d outside (%d, %d)", p, start, end)
		}
		if p != start+int64(i+1)*step.Milliseconds() {
			t.Errorf("Instant %d at %d is not on the grid", i, p)
		}
	}
}

// TestDetectPings verifies who broadcasts at each tick of the fixture game
func TestDetectPings(t *testing.T) {
	s := fixtureSession(t)
	if len(s.Pings) != 3 {
		t.Fatalf("Expected 3 pings, got %d", len(s.Pings))
	}

	tests := []struct {
		at   int64
		want []string
	}{
		{t0 + 360_000, []string{"b", "c"}},
		{t0 + 660_000, []string{"c"}},
		{t0 + 960_000, []string{"c"}},
	}
	for i, tt := range tests {
		ev := s.Pings[i]
		if ev.Time != tt.at {
			t.Errorf("Ping %d: expected time %d, got %d", i, tt.at, ev.Time)
		}
		if len(ev.Locations) != len(tt.want) {
			t.Errorf("Ping %d: expected %v, got %d locations", i, tt.want, len(ev.Locations))
		}
		for _, id := range tt.want {
			loc, ok := ev.Locations[id]
			if !ok {
				t.Errorf("Ping %d: missing %s", i, id)
				continue
			}
			if loc.Time > ev.Time {
				t.Errorf("Ping %d: %s broadcast a future fix at %d", i, id, loc.Time)
			}
		}
		if _, ok := ev.Locations["a"]; ok {
			t.Errorf("Ping %d: the seed hunter should never broadcast", i)
		}
	}
}

// TestDetectPingsSkipsInterpolated verifies only reported fixes are broadcast
func TestDetectPingsSkipsInterpolated(t *testing.T) {
	tracks := map[string]Track{
		"a": {
			{Time: 0, GameState: GameStateRunning, Lat: 1},
			{Time: 50, GameState: GameStateRunning, Lat: 2, IsInterpolated: true},
			{Time: 200, GameState: GameStateOver, Lat: 3},
		},
		"late": {
			{Time: 150, GameState: GameStateRunning},
		},
	}
	bounds := ComputeBounds(tracks)

	pings := DetectPings(tracks, bounds, CatchTimeline{}, 100*time.Millisecond)
	if len(pings) != 1 {
		t.Fatalf("Expected 1 ping, got %d", len(pings))
	}
	loc, ok := pings[0].Locations["a"]
	if !ok {
		t.Fatal("Expected a in the ping")
	}
	if loc.Lat != 1 {
		t.Errorf("Expected the last reported fix (lat 1), got lat %f", loc.Lat)
	}
	if _, ok := pings[0].Locations["late"]; ok {
		t.Error("A participant without an earlier fix should be left out")
	}
}

// TestDetectPingsWithoutRunning verifies an incomplete game has no pings
func TestDetectPingsWithoutRunning(t *testing.T) {
	tracks := map[string]Track{
		"a": {{Time: 0, GameState: GameStateRunning}, {Time: 10_000_000, GameState: GameStateRunning}},
	}
	if pings := DetectPings(tracks, ComputeBounds(tracks), CatchTimeline{}, time.Minute); pings != nil {
		t.Errorf("Expected no pings, got %d", len(pings))
	}
}

func TestPingsBetween(t *testing.T) {
	events := []PingEvent{{Time: 100}, {Time: 200}, {Time: 300}}

	tests := []struct {
		name     string
		from, to int64
		want     int
	}{
		{"all", 0, 1000, 3},
		{"inclusive ends", 100, 300, 3},
		{"middle", 150, 250, 1},
		{"none", 301, 400, 0},
		{"inverted", 300, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(PingsBetween(events, tt.from, tt.to)); got != tt.want {
				t.Errorf("Expected %d pings, got %d", tt.want, got)
			}
		})
	}
}

func TestLatestPing(t *testing.T) {
	events := []PingEvent{{Time: 100}, {Time: 200}}

	if _, ok := LatestPing(events, 99); ok {
		t.Error("Expected no ping before the first one")
	}
	if ev, ok := LatestPing(events, 100); !ok || ev.Time != 100 {
		t.Errorf("Expected ping at 100, got %d (%v)", ev.Time, ok)
	}
	if ev, ok := LatestPing(events, 1000); !ok || ev.Time != 200 {
		t.Errorf("Expected ping at 200, got %d (%v)", ev.Time, ok)
	}
}
