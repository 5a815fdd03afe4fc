package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chase-replay/internal/render"
	"chase-replay/internal/replay"
)

// PlaybackController is the subset of the engine that changes playback
type PlaybackController interface {
	Play() (replay.PlaybackState, error)
	Pause() (replay.PlaybackState, error)
	TogglePause() (replay.PlaybackState, error)
	SeekTo(t int64) (replay.PlaybackState, error)
	SetSpeed(factor float64) (replay.PlaybackState, error)
	ToggleSlowMo() (replay.PlaybackState, error)
}

// EngineInterface defines the engine methods used by the API.
// Tests mock it instead of running the frame loop.
type EngineInterface interface {
	PlaybackController

	// State returns the playback state; false before a session is loaded
	State() (replay.PlaybackState, bool)
	// Session returns the active session (may be nil)
	Session() *replay.Session
	// LatestFrame returns the last published frame
	LatestFrame() (replay.Frame, bool)
	// FrameAt computes a frame without moving playback
	FrameAt(t int64) (replay.Frame, error)
	// LoadSession replaces the active session
	LoadSession(s *replay.Session)
	// Stats returns frame driver counters
	Stats() map[string]interface{}
}

// SessionLoader rebuilds the session from its source files
type SessionLoader func() (*replay.Session, error)

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000,
//	        Burst:             1000,
//	    },
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the frame driver (required)
	Engine EngineInterface

	// Reload rebuilds the session for POST /api/session/reload.
	// The route answers 501 when nil.
	Reload SessionLoader

	// Render sizes the PNG renderer behind /api/frame.png
	Render render.Options

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is used only when RateLimiter is nil.
	// If both are nil, DefaultRateLimitConfig applies.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to local development origins when nil
	CORSOrigins []string

	// DisableLogging disables the request logger (benchmarks)
	DisableLogging bool
}

// DefaultCORSOrigins are used when RouterConfig.CORSOrigins is nil
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter starts no goroutines besides the rate limiter's cleanup and opens
// no listeners, so it is safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:    cfg.Engine,
		reload:    cfg.Reload,
		renderers: newRendererCache(cfg.Render),
	}

	r.Route("/api", func(r chi.Router) {
		// Session
		r.Get("/session", h.handleGetSession)
		r.Post("/session/reload", h.handleReloadSession)
		r.Get("/tracks.geojson", h.handleGetTracks)
		r.Get("/pings", h.handleGetPings)
		r.Get("/captures", h.handleGetCaptures)

		// Frames
		r.Get("/frame", h.handleGetFrame)
		r.Get("/frame.png", h.handleGetFramePNG)

		// Playback
		r.Get("/playback", h.handleGetPlayback)
		r.Post("/playback/play", h.handlePlay)
		r.Post("/playback/pause", h.handlePause)
		r.Post("/playback/toggle", h.handleToggle)
		r.Post("/playback/seek", h.handleSeek)
		r.Post("/playback/speed", h.handleSpeed)
		r.Post("/playback/slowmo", h.handleSlowMo)

		r.Get("/stats", h.handleGetStats)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
