package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"chase-replay/internal/render"
	"chase-replay/internal/replay"
)

// ServerOptions configures NewServer
type ServerOptions struct {
	Reload      SessionLoader
	Render      render.Options
	CORSOrigins []string
	RateLimit   RateLimitConfig

	// FrameBroadcastInterval throttles frames pushed to viewers; journal
	// events are always pushed.
	FrameBroadcastInterval time.Duration
}

// Server is the HTTP API with the WebSocket frame feed.
type Server struct {
	engine      *replay.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server

	frameEvery    time.Duration
	broadcastMu   sync.Mutex
	lastBroadcast time.Time
}

// NewServer builds the router and registers the engine callbacks.
//
// Background workers do not start until Start is called, so tests can use
// Router() without them.
func NewServer(engine *replay.Engine, opts ServerOptions) *Server {
	if opts.RateLimit.RequestsPerSecond <= 0 {
		opts.RateLimit = DefaultRateLimitConfig
	}
	if opts.FrameBroadcastInterval <= 0 {
		opts.FrameBroadcastInterval = 100 * time.Millisecond
	}
	origins := opts.CORSOrigins
	if origins == nil {
		origins = DefaultCORSOrigins
	}

	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(engine, origins),
		rateLimiter: NewIPRateLimiter(opts.RateLimit),
		frameEvery:  opts.FrameBroadcastInterval,
	}

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Reload:      opts.Reload,
		Render:      opts.Render,
		RateLimiter: s.rateLimiter,
		CORSOrigins: origins,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	engine.SetCallbacks(s.onFrame, s.onEvent)
	return s
}

// onFrame runs after every frame, on the frame driver goroutine or on the
// goroutine of a playback control
func (s *Server) onFrame(f replay.Frame) {
	RecordFrame(f)

	// paused frames come from user actions and are always sent
	now := time.Now()
	s.broadcastMu.Lock()
	if f.Status == replay.StatusRunning && now.Sub(s.lastBroadcast) < s.frameEvery {
		s.broadcastMu.Unlock()
		return
	}
	s.lastBroadcast = now
	s.broadcastMu.Unlock()

	s.wsHub.Broadcast("frame", f)
}

func (s *Server) onEvent(ev replay.JournalEvent) {
	RecordJournalEvent(ev)
	UpdateJournalStats(s.engine.Journal())
	s.wsHub.Broadcast("journal", ev)
}

// Start runs the hub and serves HTTP until Shutdown
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests and closes viewer connections
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
