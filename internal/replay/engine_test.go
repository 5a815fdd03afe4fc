package replay

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder collects engine callbacks
type recorder struct {
	mu     sync.Mutex
	frames []Frame
	events []JournalEvent
}

func (r *recorder) onFrame(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recorder) onEvent(ev JournalEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []JournalEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JournalEventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.frames = nil
	r.events = nil
	r.mu.Unlock()
}

func loadedEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	e := NewEngine(DefaultEngineConfig())
	rec := &recorder{}
	e.SetCallbacks(rec.onFrame, rec.onEvent)
	e.LoadSession(fixtureSession(t))
	return e, rec
}

// TestNewEngine verifies engine creation with correct defaults
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EngineConfig
		wantFPS int
	}{
		{"defaults", DefaultEngineConfig(), 30},
		{"zero config", EngineConfig{}, 30},
		{"high FPS", EngineConfig{FPS: 60}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.cfg)
			if e == nil {
				t.Fatal("NewEngine returned nil")
			}
			if e.cfg.FPS != tt.wantFPS {
				t.Errorf("Expected %d FPS, got %d", tt.wantFPS, e.cfg.FPS)
			}
			if e.cfg.SlowMoFactor <= 0 {
				t.Error("Expected a positive slow-mo factor")
			}
		})
	}
}

// TestEngineWithoutSession verifies controls fail cleanly before a load
func TestEngineWithoutSession(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())

	controls := map[string]func() (PlaybackState, error){
		"play":   e.Play,
		"pause":  e.Pause,
		"toggle": e.TogglePause,
		"slowmo": e.ToggleSlowMo,
		"seek":   func() (PlaybackState, error) { return e.SeekTo(0) },
		"speed":  func() (PlaybackState, error) { return e.SetSpeed(1) },
	}
	for name, fn := range controls {
		if _, err := fn(); !errors.Is(err, ErrNoSession) {
			t.Errorf("%s: expected ErrNoSession, got %v", name, err)
		}
	}

	if _, ok := e.State(); ok {
		t.Error("Expected no state before a load")
	}
	if _, ok := e.LatestFrame(); ok {
		t.Error("Expected no frame before a load")
	}
	if _, err := e.FrameAt(0); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession from FrameAt, got %v", err)
	}
	if e.Session() != nil {
		t.Error("Expected nil session")
	}
}

// TestEngineLoadSession verifies a load starts paused at the first instant
func TestEngineLoadSession(t *testing.T) {
	e, rec := loadedEngine(t)

	state, ok := e.State()
	if !ok {
		t.Fatal("Expected a state after load")
	}
	if !state.Paused || state.Time() != t0 {
		t.Errorf("Expected paused at %d, got paused=%v time=%d", t0, state.Paused, state.Time())
	}

	f, ok := e.LatestFrame()
	if !ok || f.Time != t0 || f.Status != StatusPaused {
		t.Errorf("Unexpected first frame %+v", f)
	}

	if got := rec.types(); len(got) != 1 || got[0] != JournalSessionLoaded {
		t.Errorf("Expected a session_loaded event, got %v", got)
	}
	if len(rec.frames) != 1 {
		t.Errorf("Expected one frame on load, got %d", len(rec.frames))
	}
}

// TestEngineControls verifies every control redraws and is journaled
func TestEngineControls(t *testing.T) {
	e, rec := loadedEngine(t)
	rec.reset()

	state, err := e.SeekTo(t0 + 600_000)
	if err != nil || state.Time() != t0+600_000 {
		t.Fatalf("SeekTo: %v, time %d", err, state.Time())
	}
	if f, _ := e.LatestFrame(); f.Time != t0+600_000 {
		t.Errorf("Expected the frame to follow the seek, got %d", f.Time)
	}

	if state, _ = e.SeekTo(t0 - 1_000_000); state.Time() != t0 {
		t.Errorf("Expected seek to clamp to %d, got %d", t0, state.Time())
	}

	if _, err := e.SetSpeed(-1); !errors.Is(err, ErrInvalidSpeed) {
		t.Errorf("Expected ErrInvalidSpeed, got %v", err)
	}
	if state, _ = e.SetSpeed(60); state.SpeedFactor != 60 {
		t.Errorf("Expected speed 60, got %f", state.SpeedFactor)
	}

	if state, _ = e.ToggleSlowMo(); !state.SlowMo {
		t.Error("Expected slow motion on")
	}
	if state, _ = e.TogglePause(); state.Paused {
		t.Error("Expected running after toggle")
	}
	if state, _ = e.Pause(); !state.Paused {
		t.Error("Expected paused")
	}
	if state, _ = e.Play(); state.Paused {
		t.Error("Expected running")
	}

	want := []JournalEventType{JournalSeek, JournalSeek, JournalSpeed, JournalSlowMo, JournalPlay, JournalPause, JournalPlay}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	// the rejected speed change draws nothing
	if len(rec.frames) != len(want) {
		t.Errorf("Expected %d frames, got %d", len(want), len(rec.frames))
	}
}

// TestEngineTickCrossesEvents verifies captures, pings and the end are reported
func TestEngineTickCrossesEvents(t *testing.T) {
	e, rec := loadedEngine(t)
	if _, err := e.SetSpeed(2_000); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	e.Play()
	rec.reset()

	now := time.Unix(1_700_000_000, 0)
	e.tick(now)
	if len(rec.frames) != 0 {
		t.Error("The baseline tick should not draw")
	}

	e.tick(now.Add(time.Second))

	var captures, pings, ends int
	for _, typ := range rec.types() {
		switch typ {
		case JournalCapture:
			captures++
		case JournalPing:
			pings++
		case JournalEnd:
			ends++
		}
	}
	if captures != 1 || pings != 3 || ends != 1 {
		t.Errorf("Expected 1 capture, 3 pings, 1 end; got %d, %d, %d", captures, pings, ends)
	}

	state, _ := e.State()
	if !state.Paused || state.Time() != t0+1_260_000 {
		t.Errorf("Expected paused at the end, got paused=%v time=%d", state.Paused, state.Time())
	}

	// further ticks while paused draw nothing
	n := len(rec.frames)
	e.tick(now.Add(2 * time.Second))
	if len(rec.frames) != n {
		t.Error("A paused engine should not redraw on tick")
	}
}

// TestEngineFrameAt verifies arbitrary frames leave playback alone
func TestEngineFrameAt(t *testing.T) {
	e, _ := loadedEngine(t)

	f, err := e.FrameAt(t0 + 600_000)
	if err != nil {
		t.Fatalf("FrameAt failed: %v", err)
	}
	if f.Time != t0+600_000 || f.ChaserCount != 2 {
		t.Errorf("Unexpected frame time %d chasers %d", f.Time, f.ChaserCount)
	}

	if f, _ = e.FrameAt(t0 + 99_000_000); f.Time != t0+1_260_000 || f.Progress != 1 {
		t.Errorf("Expected clamp to the end, got time %d progress %f", f.Time, f.Progress)
	}

	state, _ := e.State()
	if state.Time() != t0 {
		t.Errorf("FrameAt moved playback to %d", state.Time())
	}
}

// TestEngineSessionSwitch verifies a reload resets playback
func TestEngineSessionSwitch(t *testing.T) {
	e, _ := loadedEngine(t)
	e.SeekTo(t0 + 600_000)
	e.Play()
	first := e.Session()

	second := fixtureSession(t)
	e.LoadSession(second)

	if e.Session() != second || e.Session() == first {
		t.Error("Expected the new session to be active")
	}
	state, _ := e.State()
	if !state.Paused || state.Time() != t0 {
		t.Errorf("Expected a fresh paused state, got paused=%v time=%d", state.Paused, state.Time())
	}
}

// TestEngineStartStop verifies the frame loop starts and stops without panics
func TestEngineStartStop(t *testing.T) {
	e, rec := loadedEngine(t)
	if err := e.StartJournal(""); err != nil {
		t.Fatalf("StartJournal failed: %v", err)
	}
	defer e.StopJournal()

	e.Start()
	e.Start() // second start is a no-op
	e.Play()
	time.Sleep(100 * time.Millisecond)
	e.Stop()

	// Should not panic on double stop
	e.Stop()

	rec.mu.Lock()
	frames := len(rec.frames)
	rec.mu.Unlock()
	if frames < 2 {
		t.Errorf("Expected the loop to draw frames, got %d", frames)
	}

	stats := e.Stats()
	if stats["running"] != false {
		t.Errorf("Expected stopped engine, got %v", stats["running"])
	}
	if e.Journal().TotalCount() == 0 {
		t.Error("Expected journal events")
	}
}

// TestEngineLatestFrameDuringTicks verifies readers always see a complete,
// increasing frame while the driver keeps publishing
func TestEngineLatestFrameDuringTicks(t *testing.T) {
	e, _ := loadedEngine(t)
	if _, err := e.SetSpeed(1); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	e.Play()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		now := time.Unix(1_700_000_000, 0)
		for i := 0; i < 200; i++ {
			e.tick(now.Add(time.Duration(i) * 10 * time.Millisecond))
		}
	}()

	errs := make(chan string, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for i := 0; i < 200; i++ {
				f, ok := e.LatestFrame()
				if !ok {
					errs <- "no frame published"
					return
				}
				if len(f.Participants) != 3 {
					errs <- "incomplete frame"
					return
				}
				if f.Sequence < last {
					errs <- "sequence went backwards"
					return
				}
				last = f.Sequence
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
