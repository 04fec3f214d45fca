// Command podium is the main entry point for the podium presentation
// practice analysis server.
package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/podium/internal/app"
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/pacing"
	"github.com/MrWong99/podium/internal/resilience"
	"github.com/MrWong99/podium/internal/script"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/stt/deepgram"
	"github.com/MrWong99/podium/pkg/provider/stt/mock"
	"github.com/MrWong99/podium/pkg/provider/stt/openai"
	"github.com/MrWong99/podium/pkg/provider/stt/whisper"
	"github.com/MrWong99/podium/pkg/types"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	analyzePath := flag.String("analyze", "", "analyse a recording JSON file, print its summary and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, os.ErrNotExist) && *analyzePath != "":
		// Offline analysis works without a config file.
		cfg = &config.Config{}
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(os.Stderr, "podium: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		return 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "podium: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(observe.NewLogger(os.Stderr, cfg.Server.LogFormat, &level))

	if *analyzePath != "" {
		if err := analyzeFile(os.Stdout, cfg, *analyzePath); err != nil {
			slog.Error("analysis failed", "path", *analyzePath, "err", err)
			return 1
		}
		return 0
	}

	slog.Info("podium starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"trace_exporter", cmp.Or(cfg.Telemetry.Exporter, string(observe.ExporterNone)),
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(context.Background(), telemetryConfig(cfg.Telemetry))
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if old.Server.LogLevel != new.Server.LogLevel {
			level.Set(slogLevel(new.Server.LogLevel))
			slog.Info("log level changed", "level", new.Server.LogLevel)
		}
		if err := application.ApplyConfig(ctx, old, new); err != nil {
			slog.Error("failed to apply configuration", "err", err)
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
		go reloadOnHangup(ctx, watcher)
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// telemetryConfig maps the telemetry section onto the OTel provider setup.
func telemetryConfig(tc config.TelemetryConfig) observe.ProviderConfig {
	return observe.ProviderConfig{
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		Environment:    tc.Environment,
		Exporter:       observe.Exporter(tc.Exporter),
		Endpoint:       tc.Endpoint,
		Insecure:       tc.Insecure,
		Headers:        tc.Headers,
		SampleRatio:    tc.SampleRatio,
	}
}

// reloadOnHangup forces a config reload on every SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if !w.Reload() {
				slog.Info("SIGHUP: configuration unchanged")
			}
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in transcription provider
// factories into reg. Each factory receives a config.ProviderEntry and
// constructs the provider from the real implementation package.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang, _ := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if secs, ok := entry.OptionInt("timeout_seconds"); ok {
			opts = append(opts, whisper.WithTimeout(time.Duration(secs)*time.Second))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org, _ := entry.OptionString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if lang, _ := entry.OptionString("language"); lang != "" {
			opts = append(opts, openai.WithLanguage(lang))
		}
		if secs, ok := entry.OptionInt("timeout_seconds"); ok {
			opts = append(opts, openai.WithTimeout(time.Duration(secs)*time.Second))
		}
		if n, ok := entry.OptionInt("max_retries"); ok {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang, _ := entry.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// mock answers every part with an empty transcript; useful for wiring
	// tests of a deployment without a recogniser.
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) {
		return &mock.Provider{}, nil
	})

	slog.Debug("registered providers", "kind", "stt", "names", reg.STTNames())
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Configured fallbacks wrap the provider in a circuit-breaking failover.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	tc := cfg.Transcription
	name := tc.Provider.Name
	if name == "" {
		slog.Info("no transcription provider configured, audio uploads disabled")
		return ps, nil
	}

	p, err := reg.CreateSTT(tc.Provider)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", name, "model", tc.Provider.Model)
	ps.STT = p

	if len(tc.Fallbacks) == 0 {
		return ps, nil
	}
	failover := resilience.NewSTTFailover(name, p, resilience.BreakerConfig{
		MaxFailures: tc.Breaker.MaxFailures,
		Cooldown:    tc.Breaker.Cooldown,
	})
	for i, entry := range tc.Fallbacks {
		fb, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %d (%q): %w", i, entry.Name, err)
		}
		// Names must be unique per breaker; the same backend may appear twice
		// with different models.
		failover.AddFallback(fmt.Sprintf("%s#%d", entry.Name, i+1), fb)
	}
	slog.Info("stt failover enabled", "order", failover.Names())
	ps.STT = failover
	return ps, nil
}

// ── Offline analysis ──────────────────────────────────────────────────────────

// recordingFile is the on-disk format accepted by -analyze. It matches the
// body of POST /v1/recordings.
type recordingFile struct {
	ScriptID string                    `json:"script_id"`
	Parts    []types.RawTranscriptPart `json:"parts"`
}

// analyzeFile analyses the recording at path with the configured pacing
// parameters and scripts and writes the summary as indented JSON to w.
func analyzeFile(w io.Writer, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var rf recordingFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("decode %q: %w", path, err)
	}

	var lookup pacing.Lookup
	if rf.ScriptID != "" {
		sc, err := findScript(cfg.Script.Path, rf.ScriptID)
		if err != nil {
			return err
		}
		lookup = sc
	}

	analyzer := pacing.NewAnalyzer(pacing.WithBuilder(pacing.NewBuilder(cfg.Pacing.BuilderOptions()...)))
	summary := analyzer.Analyze(context.Background(), "cli", rf.Parts, lookup)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func findScript(path, id string) (*script.Script, error) {
	if path == "" {
		return nil, fmt.Errorf("recording names script %q but script.path is not configured", id)
	}
	scripts, err := script.LoadPath(path)
	if err != nil {
		return nil, err
	}
	for _, sc := range scripts {
		if sc.Meta.ID == id {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("script %q not found in %q", id, path)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
