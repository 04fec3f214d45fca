package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the built-in transcription providers.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"whisper", "openai", "deepgram", "mock"}

// ValidTraceExporters lists the accepted telemetry.exporter values.
var ValidTraceExporters = []string{"none", "stdout", "otlp"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the zero [Config].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	switch cfg.Server.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Pacing
	p := cfg.Pacing
	if p.BiasMultiplier < 0 {
		errs = append(errs, fmt.Errorf("pacing.bias_multiplier %.2f must not be negative", p.BiasMultiplier))
	}
	if p.TargetBuckets < 0 {
		errs = append(errs, fmt.Errorf("pacing.target_buckets %d must not be negative", p.TargetBuckets))
	}
	for _, d := range []struct {
		name  string
		value any
		bad   bool
	}{
		{"pacing.min_bucket", p.MinBucket, p.MinBucket < 0},
		{"pacing.long_min_bucket", p.LongMinBucket, p.LongMinBucket < 0},
		{"pacing.long_threshold", p.LongThreshold, p.LongThreshold < 0},
		{"storage.cache_ttl", cfg.Storage.CacheTTL, cfg.Storage.CacheTTL < 0},
		{"live.debounce", cfg.Live.Debounce, cfg.Live.Debounce < 0},
	} {
		if d.bad {
			errs = append(errs, fmt.Errorf("%s %v must not be negative", d.name, d.value))
		}
	}
	if p.MinBucket > 0 && p.LongMinBucket > 0 && p.LongMinBucket < p.MinBucket {
		errs = append(errs, fmt.Errorf("pacing.long_min_bucket %v is shorter than pacing.min_bucket %v", p.LongMinBucket, p.MinBucket))
	}

	// Transcription
	t := cfg.Transcription
	if t.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("transcription.concurrency %d must not be negative", t.Concurrency))
	}
	validateProviderName(t.Provider.Name)
	for i, fb := range t.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("transcription.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName(fb.Name)
	}
	if len(t.Fallbacks) > 0 && t.Provider.Name == "" {
		errs = append(errs, errors.New("transcription.fallbacks requires transcription.provider.name"))
	}
	if t.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("transcription.breaker.max_failures %d must not be negative", t.Breaker.MaxFailures))
	}
	if t.Breaker.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("transcription.breaker.cooldown %v must not be negative", t.Breaker.Cooldown))
	}
	if t.Provider.Name == "" && (t.Provider.APIKey != "" || t.Provider.Model != "") {
		slog.Warn("transcription.provider has settings but no name; audio uploads are disabled")
	}

	// Telemetry
	tel := cfg.Telemetry
	if tel.Exporter != "" && !slices.Contains(ValidTraceExporters, tel.Exporter) {
		errs = append(errs, fmt.Errorf("telemetry.exporter %q is invalid; valid values: %v", tel.Exporter, ValidTraceExporters))
	}
	if tel.Exporter == "otlp" && tel.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required for the otlp exporter"))
	}
	if tel.SampleRatio < 0 || tel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %v must be between 0 and 1", tel.SampleRatio))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; recordings are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of
// [ValidProviderNames].
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown transcription provider; may be a typo or a third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
