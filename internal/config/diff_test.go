package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/podium/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Pacing: config.PacingConfig{BiasMultiplier: 1.2},
		Script: config.ScriptConfig{Path: "a.yaml"},
		Transcription: config.TranscriptionConfig{
			Provider: config.ProviderEntry{Name: "openai", Options: map[string]any{"max_retries": 2}},
		},
		Live: config.LiveConfig{Debounce: time.Second},
		Telemetry: config.TelemetryConfig{
			Exporter: "otlp",
			Endpoint: "collector:4318",
			Headers:  map[string]string{"authorization": "Bearer a"},
		},
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(c *config.Config)
		check       func(t *testing.T, d config.ConfigDiff)
		wantRestart []string
	}{
		{
			name:   "no change",
			mutate: func(*config.Config) {},
			check: func(t *testing.T, d config.ConfigDiff) {
				if d.Changed() {
					t.Errorf("expected no change, got %+v", d)
				}
			},
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
					t.Errorf("log level diff = %+v", d)
				}
			},
		},
		{
			name:   "pacing",
			mutate: func(c *config.Config) { c.Pacing.TargetBuckets = 40 },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.PacingChanged || d.NewPacing.TargetBuckets != 40 {
					t.Errorf("pacing diff = %+v", d)
				}
			},
		},
		{
			name:   "script path",
			mutate: func(c *config.Config) { c.Script.Path = "b.yaml" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.ScriptChanged || d.NewScriptPath != "b.yaml" {
					t.Errorf("script diff = %+v", d)
				}
			},
		},
		{
			name:   "live debounce",
			mutate: func(c *config.Config) { c.Live.Debounce = 2 * time.Second },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LiveChanged || d.NewLive.Debounce != 2*time.Second {
					t.Errorf("live diff = %+v", d)
				}
			},
		},
		{
			name: "restart-only sections",
			mutate: func(c *config.Config) {
				c.Server.ListenAddr = ":9090"
				c.Storage.RedisAddr = "localhost:6379"
				c.Transcription.Provider.Options["max_retries"] = 5
			},
			wantRestart: []string{"server.listen_addr", "storage", "transcription"},
		},
		{
			name: "fallback added",
			mutate: func(c *config.Config) {
				c.Transcription.Fallbacks = []config.ProviderEntry{{Name: "deepgram"}}
			},
			wantRestart: []string{"transcription"},
		},
		{
			name:        "breaker tuned",
			mutate:      func(c *config.Config) { c.Transcription.Breaker.Cooldown = time.Minute },
			wantRestart: []string{"transcription"},
		},
		{
			name:        "log format",
			mutate:      func(c *config.Config) { c.Server.LogFormat = "json" },
			wantRestart: []string{"server.log_format"},
		},
		{
			name:        "telemetry sample ratio",
			mutate:      func(c *config.Config) { c.Telemetry.SampleRatio = 0.25 },
			wantRestart: []string{"telemetry"},
		},
		{
			name:        "telemetry header rotated",
			mutate:      func(c *config.Config) { c.Telemetry.Headers["authorization"] = "Bearer b" },
			wantRestart: []string{"telemetry"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, updated := baseConfig(), baseConfig()
			tt.mutate(updated)
			d := config.Diff(old, updated)
			if tt.check != nil {
				tt.check(t, d)
			}
			if !slices.Equal(d.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.wantRestart)
			}
		})
	}
}
