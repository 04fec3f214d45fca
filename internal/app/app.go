// Package app wires all podium subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API, and Shutdown tears everything down in
// order. ApplyConfig applies the hot-reloadable part of a configuration
// change to the running application.
//
// For testing, inject implementations via functional options (WithStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/podium/internal/api"
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/internal/health"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/pacing"
	"github.com/MrWong99/podium/internal/recording"
	"github.com/MrWong99/podium/internal/results"
	"github.com/MrWong99/podium/internal/results/postgres"
	"github.com/MrWong99/podium/internal/script"
	"github.com/MrWong99/podium/pkg/provider/stt"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT stt.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems: initialised in New, torn down in Shutdown.
	scripts *script.MemRepository
	store   results.Store
	health  *health.Handler
	metrics *observe.Metrics
	api     *api.Server
	srv     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithStore injects a results store instead of creating one from config.
// No Redis cache is put in front of an injected store.
func WithStore(s results.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry); a nil providers
// value disables audio uploads.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		scripts:   &script.MemRepository{},
		health:    health.New(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Scripts ───────────────────────────────────────────────────────
	if err := a.loadScripts(ctx, cfg.Script.Path); err != nil {
		return nil, fmt.Errorf("app: load scripts: %w", err)
	}
	a.health.Add(health.Checker{Name: "scripts", Check: a.checkScripts})

	// ── 2. Results store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 3. HTTP API ──────────────────────────────────────────────────────
	apiOpts := []api.Option{
		api.WithHealth(a.health),
		api.WithMetrics(a.metrics),
		api.WithLiveDebounce(cfg.Live.Debounce),
	}
	if a.providers.STT != nil {
		t := recording.NewTranscriber(a.providers.STT,
			recording.WithConcurrency(cfg.Transcription.Concurrency),
			recording.WithLanguage(cfg.Transcription.Language),
			recording.WithMetrics(a.metrics, cfg.Transcription.Provider.Name),
		)
		apiOpts = append(apiOpts, api.WithTranscriber(t))
	}
	a.api = api.New(a.newAnalyzer(cfg.Pacing), a.scripts, a.store, apiOpts...)

	a.srv = &http.Server{
		Addr:              cmp.Or(cfg.Server.ListenAddr, config.DefaultListenAddr),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// loadScripts loads every script at path into the repository. An empty
// path loads nothing.
func (a *App) loadScripts(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	scripts, err := script.LoadPath(path)
	if err != nil {
		return err
	}
	for _, s := range scripts {
		if err := a.scripts.Put(ctx, s); err != nil {
			return err
		}
		slog.Info("loaded script", "id", s.Meta.ID, "parts", len(s.Parts))
	}
	return nil
}

// checkScripts fails readiness while a configured script path has produced
// no scripts.
func (a *App) checkScripts(ctx context.Context) error {
	if a.cfg.Script.Path == "" {
		return nil
	}
	metas, err := a.scripts.List(ctx)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		return errors.New("no scripts loaded")
	}
	return nil
}

// initStore sets up the PostgreSQL store and the Redis cache, or uses the
// injected store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	storage := a.cfg.Storage
	var store results.Store
	if storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn not set, recordings are kept in memory")
		store = &results.MemStore{}
	} else {
		pg, err := postgres.NewStore(ctx, storage.PostgresDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
		a.health.Add(health.PingCheck("store", pg))
		store = pg
	}

	if storage.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: storage.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		cache := results.NewCache(store, rdb, results.WithTTL(storage.CacheTTL))
		if err := cache.Ping(ctx); err != nil {
			// The cache falls back to the store, so a missing Redis only
			// costs latency.
			slog.Warn("redis cache unreachable at startup", "addr", storage.RedisAddr, "err", err)
		}
		a.health.Add(health.PingCheck("cache", cache))
		store = cache
	}

	a.store = store
	return nil
}

func (a *App) newAnalyzer(pc config.PacingConfig) *pacing.Analyzer {
	return pacing.NewAnalyzer(
		pacing.WithBuilder(pacing.NewBuilder(pc.BuilderOptions()...)),
		pacing.WithMetrics(a.metrics),
	)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

// Store returns the results store in use.
func (a *App) Store() results.Store {
	return a.store
}

// Scripts returns the script repository.
func (a *App) Scripts() script.Repository {
	return a.scripts
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new to
// the running application: pacing parameters, the script path and the live
// debounce. Log level changes are the caller's concern. Sections that need
// a restart are logged and otherwise ignored.
func (a *App) ApplyConfig(ctx context.Context, old, new *config.Config) error {
	d := config.Diff(old, new)
	var errs []error

	if d.PacingChanged {
		a.api.SetAnalyzer(a.newAnalyzer(d.NewPacing))
		slog.Info("pacing configuration applied")
	}
	if d.ScriptChanged {
		if err := a.loadScripts(ctx, d.NewScriptPath); err != nil {
			errs = append(errs, fmt.Errorf("app: reload scripts: %w", err))
		}
	}
	if d.LiveChanged {
		a.api.SetLiveDebounce(cmp.Or(d.NewLive.Debounce, config.DefaultLiveDebounce))
		slog.Info("live configuration applied", "debounce", d.NewLive.Debounce)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("configuration changes require a restart", "sections", d.RestartRequired)
	}

	a.cfg = new
	return errors.Join(errs...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API and blocks until ctx is cancelled or the server
// fails. When ctx is done, Run returns ctx.Err(); call Shutdown afterwards
// to drain in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.srv.Addr)
	if err != nil {
		return fmt.Errorf("app: listen on %q: %w", a.srv.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.srv.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Serve(ln)
	}()
	slog.Info("app running", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server, waiting for in-flight requests until ctx
// expires, and then releases the store connections. Live websocket sessions
// are hijacked connections and are not waited for.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}
		a.runClosers()

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers() {
	for i, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
}
