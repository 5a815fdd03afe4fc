package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"chase-replay/internal/analysis"
	"chase-replay/internal/render"
	"chase-replay/internal/replay"
)

// routerHandlers holds the dependencies of the route handlers
type routerHandlers struct {
	engine    EngineInterface
	reload    SessionLoader
	renderers *rendererCache
}

// rendererCache keeps one renderer per session; the viewport depends on the
// session's bounds
type rendererCache struct {
	mu        sync.Mutex
	opts      render.Options
	sessionID string
	renderer  *render.Renderer
}

func newRendererCache(opts render.Options) *rendererCache {
	return &rendererCache{opts: opts}
}

func (c *rendererCache) get(s *replay.Session) *render.Renderer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.renderer == nil || c.sessionID != s.ID {
		c.renderer = render.NewRenderer(c.opts, s.Bounds)
		c.sessionID = s.ID
	}
	return c.renderer
}

type participantInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Samples   int    `json:"samples"`
	FirstTime int64  `json:"firstTime"`
	LastTime  int64  `json:"lastTime"`
	CatchTime *int64 `json:"catchTime,omitempty"`
}

type sessionInfo struct {
	ID           string                `json:"id"`
	LoadedAt     time.Time             `json:"loadedAt"`
	Bounds       replay.SessionBounds  `json:"bounds"`
	SeedHunter   string                `json:"seedHunter,omitempty"`
	Participants []participantInfo     `json:"participants"`
	Captures     int                   `json:"captures"`
	Pings        int                   `json:"pings"`
	PingInterval int64                 `json:"pingIntervalMs"`
	Interesting  []replay.TimeRange    `json:"interesting"`
	Warnings     []string              `json:"warnings"`
	Playback     *replay.PlaybackState `json:"playback,omitempty"`
}

func (h *routerHandlers) session(w http.ResponseWriter) (*replay.Session, bool) {
	s := h.engine.Session()
	if s == nil {
		writeError(w, replay.ErrNoSession.Error(), http.StatusServiceUnavailable)
		return nil, false
	}
	return s, true
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	info := sessionInfo{
		ID:           s.ID,
		LoadedAt:     s.LoadedAt,
		Bounds:       s.Bounds,
		SeedHunter:   s.SeedHunter,
		Participants: make([]participantInfo, 0, len(s.IDs)),
		Captures:     len(s.Captures),
		Pings:        len(s.Pings),
		PingInterval: s.Options.PingInterval.Milliseconds(),
		Interesting:  s.Interesting,
		Warnings:     make([]string, 0, len(s.Warnings)),
	}
	if info.Interesting == nil {
		info.Interesting = []replay.TimeRange{}
	}
	for _, id := range s.IDs {
		track := s.Tracks[id]
		p := participantInfo{
			ID:        id,
			Name:      s.Name(id),
			Samples:   len(track),
			FirstTime: track.First().Time,
			LastTime:  track.Last().Time,
		}
		if at, ok := s.Timeline.CatchTime(id); ok {
			p.CatchTime = &at
		}
		info.Participants = append(info.Participants, p)
	}
	for _, warning := range s.Warnings {
		info.Warnings = append(info.Warnings, warning.Error())
	}
	if state, ok := h.engine.State(); ok {
		info.Playback = &state
	}

	writeJSON(w, info)
}

func (h *routerHandlers) handleReloadSession(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeError(w, "reload not configured", http.StatusNotImplemented)
		return
	}

	log.Println("🔄 Session reload requested via API")
	s, err := h.reload()
	if err != nil {
		log.Printf("❌ Session reload failed: %v", err)
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.engine.LoadSession(s)

	writeJSON(w, map[string]interface{}{
		"id":           s.ID,
		"participants": len(s.IDs),
		"warnings":     len(s.Warnings),
	})
}

func (h *routerHandlers) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	data, err := analysis.ExportGeoJSON(s).MarshalJSON()
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func (h *routerHandlers) handleGetPings(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	from, to := s.Bounds.MinTime, s.Bounds.MaxTime
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, "invalid from", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, "invalid to", http.StatusBadRequest)
			return
		}
	}

	pings := replay.PingsBetween(s.Pings, from, to)
	if pings == nil {
		pings = []replay.PingEvent{}
	}
	writeJSON(w, pings)
}

func (h *routerHandlers) handleGetCaptures(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{
		"seedHunter": s.SeedHunter,
		"captures":   s.Captures,
		"timeline":   s.Timeline,
	})
}

// frame resolves the frame for a request: ?t= selects an instant, otherwise
// the latest published frame
func (h *routerHandlers) frame(w http.ResponseWriter, r *http.Request) (replay.Frame, bool) {
	if v := r.URL.Query().Get("t"); v != "" {
		t, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, "invalid t", http.StatusBadRequest)
			return replay.Frame{}, false
		}
		f, err := h.engine.FrameAt(t)
		if err != nil {
			writeEngineError(w, err)
			return replay.Frame{}, false
		}
		return f, true
	}

	if f, ok := h.engine.LatestFrame(); ok {
		return f, true
	}
	writeError(w, replay.ErrNoSession.Error(), http.StatusServiceUnavailable)
	return replay.Frame{}, false
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if f, ok := h.frame(w, r); ok {
		writeJSON(w, f)
	}
}

func (h *routerHandlers) handleGetFramePNG(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	f, ok := h.frame(w, r)
	if !ok {
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.renderers.get(s).EncodePNG(&buf, f); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	state, ok := h.engine.State()
	if !ok {
		writeError(w, replay.ErrNoSession.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, playbackView(state))
}

func (h *routerHandlers) handlePlay(w http.ResponseWriter, r *http.Request) {
	writeControl(w, h.engine.Play)
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	writeControl(w, h.engine.Pause)
}

func (h *routerHandlers) handleToggle(w http.ResponseWriter, r *http.Request) {
	writeControl(w, h.engine.TogglePause)
}

func (h *routerHandlers) handleSlowMo(w http.ResponseWriter, r *http.Request) {
	writeControl(w, h.engine.ToggleSlowMo)
}

func (h *routerHandlers) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time *int64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == nil {
		writeError(w, "time is required", http.StatusBadRequest)
		return
	}
	writeControl(w, func() (replay.PlaybackState, error) {
		return h.engine.SeekTo(*req.Time)
	})
}

func (h *routerHandlers) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Factor *float64 `json:"factor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Factor == nil {
		writeError(w, "factor is required", http.StatusBadRequest)
		return
	}
	writeControl(w, func() (replay.PlaybackState, error) {
		return h.engine.SetSpeed(*req.Factor)
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Stats())
}

// playbackResponse flattens the state with its derived values
type playbackResponse struct {
	Status      replay.PlaybackStatus `json:"status"`
	Time        int64                 `json:"time"`
	Progress    float64               `json:"progress"`
	SpeedFactor float64               `json:"speedFactor"`
	SlowMo      bool                  `json:"slowMo"`
	SlowMoNow   bool                  `json:"slowMoActive"`
	MinTime     int64                 `json:"minTime"`
	MaxTime     int64                 `json:"maxTime"`
}

func playbackView(s replay.PlaybackState) playbackResponse {
	return playbackResponse{
		Status:      s.Status(),
		Time:        s.Time(),
		Progress:    s.Progress(),
		SpeedFactor: s.SpeedFactor,
		SlowMo:      s.SlowMo,
		SlowMoNow:   s.SlowMoActive(),
		MinTime:     s.Window.MinTime,
		MaxTime:     s.Window.MaxTime,
	}
}

func writeControl(w http.ResponseWriter, fn func() (replay.PlaybackState, error)) {
	state, err := fn()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, playbackView(state))
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, replay.ErrNoSession):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, replay.ErrInvalidSpeed):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
