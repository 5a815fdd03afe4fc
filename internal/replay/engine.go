package replay

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoSession is returned by playback controls before a session is loaded
var ErrNoSession = errors.New("replay: no session loaded")

// EngineConfig configures the frame driver and the initial playback state
type EngineConfig struct {
	FPS           int
	SpeedFactor   float64
	SlowMoFactor  float64
	SlowMoEnabled bool
}

// DefaultEngineConfig matches a display refresh of 30 FPS
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FPS:          30,
		SpeedFactor:  DefaultSpeedFactor,
		SlowMoFactor: DefaultSlowMoFactor,
	}
}

// sessionRun is one loaded session together with its playback state. A new
// run is created on every session switch; the old one is marked stopped so a
// frame already in flight sees it and bails out.
type sessionRun struct {
	session *Session
	state   PlaybackState
	pool    *FramePool
	stopped atomic.Bool
}

// Engine drives playback: it turns wall-clock ticks into playback time,
// builds a Frame per tick and hands it to the registered sink.
//
// All playback state lives behind mu. Control calls from HTTP handlers and
// the frame loop are serialized there, which gives the same guarantees as a
// single event loop.
type Engine struct {
	mu  sync.RWMutex
	cfg EngineConfig
	run *sessionRun

	journal *Journal

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	doneChan chan struct{}

	onFrame func(Frame)
	onEvent func(JournalEvent)

	frameCount uint64 // atomic
	lastBuild  int64  // atomic, nanoseconds
}

// NewEngine creates an engine without a session
func NewEngine(cfg EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if cfg.FPS <= 0 {
		cfg.FPS = defaults.FPS
	}
	if cfg.SlowMoFactor <= 0 {
		cfg.SlowMoFactor = defaults.SlowMoFactor
	}
	if cfg.SpeedFactor < 0 {
		cfg.SpeedFactor = defaults.SpeedFactor
	}
	return &Engine{
		cfg:     cfg,
		journal: NewJournal(),
	}
}

// SetCallbacks registers the rendering sink and the event listener. Both are
// called outside the engine lock.
func (e *Engine) SetCallbacks(onFrame func(Frame), onEvent func(JournalEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFrame = onFrame
	e.onEvent = onEvent
}

// LoadSession discards the current session and its playback state and makes
// s the active one, paused at its first instant.
func (e *Engine) LoadSession(s *Session) {
	e.mu.Lock()

	if e.run != nil {
		e.run.stopped.Store(true)
	}

	state := NewPlaybackState(s.Window(e.cfg.SlowMoFactor), e.cfg.SpeedFactor)
	state.SlowMo = e.cfg.SlowMoEnabled

	run := &sessionRun{
		session: s,
		state:   state,
		pool:    NewFramePool(len(s.IDs)),
	}
	e.run = run
	e.journal.ResetSubjects()

	frame := e.produceFrameLocked(run)
	ev := e.emitLocked(JournalSessionLoaded, run.state.Time(), "", SessionPayload{
		SessionID:    s.ID,
		Participants: len(s.IDs),
		MinTime:      s.Bounds.MinTime,
		MaxTime:      s.Bounds.MaxTime,
		Pings:        len(s.Pings),
		Warnings:     len(s.Warnings),
	})
	onFrame, onEvent := e.onFrame, e.onEvent
	e.mu.Unlock()

	log.Printf("🎬 Session %s loaded: %d participants, %d pings, %d captures",
		s.ID, len(s.IDs), len(s.Pings), len(s.Captures))

	notify(onEvent, ev)
	if onFrame != nil {
		onFrame(frame)
	}
}

// Start begins the frame loop at the configured FPS
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.FPS))
	ticker, stop, done := e.ticker, e.stopChan, e.doneChan
	e.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case now := <-ticker.C:
				e.tick(now)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("▶️ Replay engine started at %d FPS", e.cfg.FPS)
}

// Stop ends the frame loop and waits for the current frame to finish.
// Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.doneChan
	e.mu.Unlock()

	<-done
	log.Println("🛑 Replay engine stopped")
}

// tick is the frame callback: advance the clock, build the frame, report
// crossed events.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	run := e.run
	if run == nil || run.stopped.Load() {
		e.mu.Unlock()
		return
	}

	prev := run.state
	run.state = run.state.Tick(now)
	if run.state.CurrentTime == prev.CurrentTime && run.state.Paused == prev.Paused {
		e.mu.Unlock()
		return
	}

	events := e.crossedLocked(run, prev)
	frame := e.produceFrameLocked(run)
	onFrame, onEvent := e.onFrame, e.onEvent
	e.mu.Unlock()

	for _, ev := range events {
		notify(onEvent, ev)
	}
	if onFrame != nil {
		onFrame(frame)
	}
}

// crossedLocked journals captures and pings passed between two states
func (e *Engine) crossedLocked(run *sessionRun, prev PlaybackState) []JournalEvent {
	from, to := prev.Time(), run.state.Time()
	var events []JournalEvent

	if to > from {
		for _, c := range run.session.CapturesBetween(from, to) {
			events = append(events, e.emitLocked(JournalCapture, c.Timestamp, c.RunawayID, CapturePayload{
				HunterID:  c.HunterID,
				RunawayID: c.RunawayID,
			}))
		}
		for _, p := range PingsBetween(run.session.Pings, from+1, to) {
			events = append(events, e.emitLocked(JournalPing, p.Time, "", PingPayload{
				Time:         p.Time,
				Participants: len(p.Locations),
			}))
		}
	}

	if !prev.Paused && run.state.Paused && run.state.Time() >= run.state.Window.MaxTime {
		events = append(events, e.emitLocked(JournalEnd, to, "", nil))
	}
	return events
}

// produceFrameLocked builds the frame for the current state into the pool
// and returns a copy that outlives the buffer.
func (e *Engine) produceFrameLocked(run *sessionRun) Frame {
	start := time.Now()

	f := run.pool.AcquireWrite()
	run.session.FrameInto(f, run.state.Time())
	f.Progress = run.state.Progress()
	f.Status = run.state.Status()
	f.SlowMo = run.state.SlowMoActive()
	f.Speed = run.state.SpeedFactor
	f.BuildDuration = time.Since(start)
	run.pool.PublishWrite()

	atomic.AddUint64(&e.frameCount, 1)
	atomic.StoreInt64(&e.lastBuild, int64(f.BuildDuration))
	return f.Clone()
}

func (e *Engine) emitLocked(t JournalEventType, sessionTime int64, participantID string, payload interface{}) JournalEvent {
	ev := NewJournalEvent(t, sessionTime, participantID, payload)
	e.journal.Emit(ev)
	return ev
}

func notify(fn func(JournalEvent), ev JournalEvent) {
	if fn != nil {
		fn(ev)
	}
}

// control applies a state transition and immediately redraws, so the
// visible state never lags a user action.
func (e *Engine) control(t JournalEventType, payload func(prev, next PlaybackState) interface{},
	apply func(PlaybackState) (PlaybackState, error)) (PlaybackState, error) {

	e.mu.Lock()
	run := e.run
	if run == nil {
		e.mu.Unlock()
		return PlaybackState{}, ErrNoSession
	}

	prev := run.state
	next, err := apply(prev)
	if err != nil {
		e.mu.Unlock()
		return prev, err
	}
	run.state = next

	var p interface{}
	if payload != nil {
		p = payload(prev, next)
	}
	ev := e.emitLocked(t, next.Time(), "", p)
	frame := e.produceFrameLocked(run)
	onFrame, onEvent := e.onFrame, e.onEvent
	e.mu.Unlock()

	notify(onEvent, ev)
	if onFrame != nil {
		onFrame(frame)
	}
	return next, nil
}

// Play resumes playback
func (e *Engine) Play() (PlaybackState, error) {
	return e.control(JournalPlay, nil, func(s PlaybackState) (PlaybackState, error) {
		return s.Play(), nil
	})
}

// Pause halts playback
func (e *Engine) Pause() (PlaybackState, error) {
	return e.control(JournalPause, nil, func(s PlaybackState) (PlaybackState, error) {
		return s.Pause(), nil
	})
}

// TogglePause flips between playing and paused
func (e *Engine) TogglePause() (PlaybackState, error) {
	e.mu.RLock()
	t := JournalPause
	if e.run != nil && e.run.state.Paused {
		t = JournalPlay
	}
	e.mu.RUnlock()

	return e.control(t, nil, func(s PlaybackState) (PlaybackState, error) {
		return s.TogglePause(), nil
	})
}

// SeekTo jumps to session time t (clamped)
func (e *Engine) SeekTo(t int64) (PlaybackState, error) {
	return e.control(JournalSeek,
		func(prev, next PlaybackState) interface{} {
			return SeekPayload{From: prev.Time(), To: next.Time()}
		},
		func(s PlaybackState) (PlaybackState, error) {
			return s.SeekTo(t), nil
		})
}

// SetSpeed changes the playback speed factor
func (e *Engine) SetSpeed(factor float64) (PlaybackState, error) {
	return e.control(JournalSpeed,
		func(_, next PlaybackState) interface{} {
			return SpeedPayload{Factor: next.SpeedFactor}
		},
		func(s PlaybackState) (PlaybackState, error) {
			return s.SetSpeed(factor)
		})
}

// ToggleSlowMo switches slow motion inside interesting ranges
func (e *Engine) ToggleSlowMo() (PlaybackState, error) {
	return e.control(JournalSlowMo,
		func(_, next PlaybackState) interface{} {
			return SlowMoPayload{Enabled: next.SlowMo}
		},
		func(s PlaybackState) (PlaybackState, error) {
			return s.ToggleSlowMo(), nil
		})
}

// State returns a copy of the playback state
func (e *Engine) State() (PlaybackState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.run == nil {
		return PlaybackState{}, false
	}
	return e.run.state, true
}

// Session returns the active session, nil before the first load
func (e *Engine) Session() *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.run == nil {
		return nil
	}
	return e.run.session
}

// LatestFrame returns a copy of the last published frame
func (e *Engine) LatestFrame() (Frame, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.run == nil {
		return Frame{}, false
	}
	f := e.run.pool.AcquireRead()
	if f == nil {
		return Frame{}, false
	}
	return f.Clone(), true
}

// FrameAt computes a frame for an arbitrary time without moving playback.
// t is clamped to the session span.
func (e *Engine) FrameAt(t int64) (Frame, error) {
	e.mu.RLock()
	run := e.run
	var state PlaybackState
	if run != nil {
		state = run.state
	}
	e.mu.RUnlock()
	if run == nil {
		return Frame{}, ErrNoSession
	}

	state = state.SeekTo(t)
	f := run.session.Frame(state.Time())
	f.Progress = state.Progress()
	f.Status = state.Status()
	f.SlowMo = state.SlowMoActive()
	f.Speed = state.SpeedFactor
	f.CreatedAt = time.Now()
	return f, nil
}

// StartJournal begins writing the playback journal to filePath
func (e *Engine) StartJournal(filePath string) error {
	return e.journal.Start(filePath)
}

// StopJournal flushes and closes the journal
func (e *Engine) StopJournal() {
	e.journal.Stop()
}

// Journal exposes the journal for metrics
func (e *Engine) Journal() *Journal {
	return e.journal
}

// Stats returns frame driver counters
func (e *Engine) Stats() map[string]interface{} {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	return map[string]interface{}{
		"running":        running,
		"fps":            e.cfg.FPS,
		"frames":         atomic.LoadUint64(&e.frameCount),
		"lastBuildNanos": atomic.LoadInt64(&e.lastBuild),
		"journal":        e.journal.Stats(),
	}
}
