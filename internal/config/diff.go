package config

import (
	"fmt"
	"maps"
)

// ConfigDiff describes what changed between two configs.
// Fields that can be applied without restart are tracked individually;
// everything else is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PacingChanged bool
	NewPacing     PacingConfig

	ScriptChanged bool
	NewScriptPath string

	LiveChanged bool
	NewLive     LiveConfig

	// RestartRequired names the changed sections that only take effect
	// after a restart (e.g. "server.listen_addr").
	RestartRequired []string
}

// Changed reports whether anything differs between the two configs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PacingChanged || d.ScriptChanged || d.LiveChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Pacing != new.Pacing {
		d.PacingChanged = true
		d.NewPacing = new.Pacing
	}
	if old.Script.Path != new.Script.Path {
		d.ScriptChanged = true
		d.NewScriptPath = new.Script.Path
	}
	if old.Live != new.Live {
		d.LiveChanged = true
		d.NewLive = new.Live
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Server.LogFormat != new.Server.LogFormat {
		d.RestartRequired = append(d.RestartRequired, "server.log_format")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if !transcriptionEqual(old.Transcription, new.Transcription) {
		d.RestartRequired = append(d.RestartRequired, "transcription")
	}
	if !telemetryEqual(old.Telemetry, new.Telemetry) {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}

// transcriptionEqual compares two transcription sections. Options maps are
// compared by their formatted values since YAML may decode nested maps.
func transcriptionEqual(a, b TranscriptionConfig) bool {
	if a.Concurrency != b.Concurrency || a.Language != b.Language || a.Breaker != b.Breaker {
		return false
	}
	if len(a.Fallbacks) != len(b.Fallbacks) || !providerEqual(a.Provider, b.Provider) {
		return false
	}
	for i := range a.Fallbacks {
		if !providerEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

func providerEqual(pa, pb ProviderEntry) bool {
	if pa.Name != pb.Name || pa.APIKey != pb.APIKey || pa.BaseURL != pb.BaseURL || pa.Model != pb.Model {
		return false
	}
	if len(pa.Options) != len(pb.Options) {
		return false
	}
	for k, va := range pa.Options {
		vb, ok := pb.Options[k]
		if !ok || fmt.Sprint(va) != fmt.Sprint(vb) {
			return false
		}
	}
	return true
}

func telemetryEqual(a, b TelemetryConfig) bool {
	return a.ServiceName == b.ServiceName &&
		a.Environment == b.Environment &&
		a.Exporter == b.Exporter &&
		a.Endpoint == b.Endpoint &&
		a.Insecure == b.Insecure &&
		a.SampleRatio == b.SampleRatio &&
		maps.Equal(a.Headers, b.Headers)
}
