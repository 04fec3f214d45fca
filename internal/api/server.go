// Package api exposes podium over HTTP.
//
// Routes:
//
//	POST /v1/recordings          analyse a JSON transcript and store the result
//	POST /v1/recordings/audio    transcribe uploaded audio, analyse and store
//	GET  /v1/recordings          list stored recordings, newest first
//	GET  /v1/recordings/{id}     fetch one stored recording
//	GET  /v1/scripts             list presentation scripts
//	GET  /v1/scripts/{id}        fetch one script
//	GET  /v1/live                websocket for live analysis while rehearsing
//	GET  /healthz, /readyz       liveness and readiness probes
//	GET  /metrics                Prometheus scrape endpoint
//
// Errors are returned as JSON objects of the form {"error": "..."}.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/podium/internal/coverage"
	"github.com/MrWong99/podium/internal/health"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/pacing"
	"github.com/MrWong99/podium/internal/recording"
	"github.com/MrWong99/podium/internal/results"
	"github.com/MrWong99/podium/internal/script"
	"github.com/MrWong99/podium/pkg/types"
)

const (
	// DefaultMaxBodyBytes caps JSON request bodies.
	DefaultMaxBodyBytes = 8 << 20

	// DefaultMaxUploadBytes caps multipart audio uploads.
	DefaultMaxUploadBytes = 256 << 20

	// DefaultLiveDebounce is the quiet period before a live summary is pushed.
	DefaultLiveDebounce = 750 * time.Millisecond
)

// errUnknownScript is returned when a request names a script that does not exist.
var errUnknownScript = errors.New("unknown script")

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithTranscriber enables POST /v1/recordings/audio.
func WithTranscriber(t *recording.Transcriber) Option {
	return func(s *Server) {
		s.transcriber = t
	}
}

// WithHealth serves /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics sets the metrics sink used by the request middleware and the
// live endpoint. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCoverage sets the talking-point checker. Default: coverage.NewChecker().
func WithCoverage(c *coverage.Checker) Option {
	return func(s *Server) {
		if c != nil {
			s.coverage = c
		}
	}
}

// WithLiveDebounce sets the live quiet period. Non-positive values are ignored.
func WithLiveDebounce(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.liveDebounce.Store(int64(d))
		}
	}
}

// WithMaxUploadBytes caps multipart audio uploads. Non-positive values are ignored.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithMetricsHandler overrides the handler served at /metrics.
// Default: promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// Server holds the dependencies of the HTTP API. It is safe for concurrent
// use; the analyzer and live debounce can be swapped at runtime.
type Server struct {
	analyzer     atomic.Pointer[pacing.Analyzer]
	liveDebounce atomic.Int64

	scripts        script.Repository
	store          results.Store
	coverage       *coverage.Checker
	transcriber    *recording.Transcriber
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	maxUpload      int64
	liveOrigins    []string
}

// New creates a [Server]. A nil analyzer selects pacing.NewAnalyzer(); a nil
// scripts repository serves no scripts; a nil store keeps recordings in memory.
func New(analyzer *pacing.Analyzer, scripts script.Repository, store results.Store, opts ...Option) *Server {
	s := &Server{
		scripts:        scripts,
		store:          store,
		coverage:       coverage.NewChecker(),
		health:         health.New(),
		metrics:        observe.DefaultMetrics(),
		metricsHandler: promhttp.Handler(),
		maxUpload:      DefaultMaxUploadBytes,
	}
	if s.scripts == nil {
		s.scripts = &script.MemRepository{}
	}
	if s.store == nil {
		s.store = &results.MemStore{}
	}
	s.liveDebounce.Store(int64(DefaultLiveDebounce))
	for _, o := range opts {
		o(s)
	}
	s.SetAnalyzer(analyzer)
	return s
}

// SetAnalyzer replaces the analyzer used by subsequent requests. A nil
// analyzer selects pacing.NewAnalyzer().
func (s *Server) SetAnalyzer(a *pacing.Analyzer) {
	if a == nil {
		a = pacing.NewAnalyzer()
	}
	s.analyzer.Store(a)
}

// SetLiveDebounce replaces the live quiet period for new revisions.
// Non-positive values are ignored.
func (s *Server) SetLiveDebounce(d time.Duration) {
	if d > 0 {
		s.liveDebounce.Store(int64(d))
	}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/recordings", s.handleCreateRecording)
	mux.HandleFunc("POST /v1/recordings/audio", s.handleUploadAudio)
	mux.HandleFunc("GET /v1/recordings", s.handleListRecordings)
	mux.HandleFunc("GET /v1/recordings/{id}", s.handleGetRecording)
	mux.HandleFunc("GET /v1/scripts", s.handleListScripts)
	mux.HandleFunc("GET /v1/scripts/{id}", s.handleGetScript)
	mux.HandleFunc("GET /v1/live", s.handleLive)
	s.health.Register(mux)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(mux)
}

// resolveScript returns the script named id, or nil for an empty id.
func (s *Server) resolveScript(ctx context.Context, id string) (*script.Script, error) {
	if id == "" {
		return nil, nil
	}
	sc, err := s.scripts.Get(ctx, id)
	if errors.Is(err, script.ErrNotFound) {
		return nil, fmt.Errorf("%w %q", errUnknownScript, id)
	}
	if err != nil {
		return nil, fmt.Errorf("api: load script %q: %w", id, err)
	}
	return sc, nil
}

// analyze runs the pacing analysis and talking-point coverage on parts.
// The returned recording is not yet saved.
func (s *Server) analyze(ctx context.Context, source string, sc *script.Script, parts []types.RawTranscriptPart) *results.Recording {
	var lookup pacing.Lookup
	rec := &results.Recording{Source: source, Parts: parts}
	if sc != nil {
		lookup = sc
		rec.ScriptID = sc.Meta.ID
	}
	rec.Summary = s.analyzer.Load().Analyze(ctx, source, parts, lookup)
	if sc != nil {
		rec.Coverage = s.coverage.Check(rec.Summary.Entries, sc)
	}
	return rec
}
