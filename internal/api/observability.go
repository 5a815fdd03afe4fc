package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chase-replay/internal/replay"
)

// Metrics with bounded cardinality (no per-participant labels)
var (
	frameBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replay_frame_build_duration_seconds",
		Help:    "Time spent computing a frame",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.033},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replay_render_duration_seconds",
		Help:    "Time spent rendering a frame to PNG",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25},
	})

	framesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_frames_total",
		Help: "Frames produced by the frame driver",
	})

	participantsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "replay_participants",
		Help: "Participants in the latest frame by role",
	}, []string{"role"}) // Bounded: "runner", "chaser", "inactive"

	playbackProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replay_playback_progress_ratio",
		Help: "Playback position within the session, 0 to 1",
	})

	journalEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_journal_events_total",
		Help: "Playback journal events by type",
	}, []string{"type"}) // Bounded by JournalEventType

	journalDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replay_journal_dropped",
		Help: "Journal events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // localhost only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromPort binds the debug server to localhost:port; 0 disables it
func ObservabilityFromPort(port int) ObservabilityConfig {
	cfg := DefaultObservabilityConfig()
	if port == 0 {
		cfg.Enabled = false
		return cfg
	}
	cfg.ListenAddr = net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	return cfg
}

// StartDebugServer starts the internal observability server (pprof, metrics)
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	host, _, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return err
	}
	if host != "127.0.0.1" && host != "localhost" && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost")
		_, port, _ := net.SplitHostPort(cfg.ListenAddr)
		cfg.ListenAddr = net.JoinHostPort("127.0.0.1", port)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records latency per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordFrame updates the frame metrics from one produced frame
func RecordFrame(f replay.Frame) {
	framesTotal.Inc()
	frameBuildDuration.Observe(f.BuildDuration.Seconds())
	playbackProgress.Set(f.Progress)

	inactive := len(f.Participants) - f.RunnerCount - f.ChaserCount
	participantsGauge.WithLabelValues("runner").Set(float64(f.RunnerCount))
	participantsGauge.WithLabelValues("chaser").Set(float64(f.ChaserCount))
	participantsGauge.WithLabelValues("inactive").Set(float64(inactive))
}

// RecordRender records PNG render timing
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordJournalEvent counts a journal event by type
func RecordJournalEvent(ev replay.JournalEvent) {
	journalEvents.WithLabelValues(ev.Type.String()).Inc()
}

// UpdateJournalStats publishes the journal drop counter
func UpdateJournalStats(j *replay.Journal) {
	journalDropped.Set(float64(j.DroppedCount()))
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
