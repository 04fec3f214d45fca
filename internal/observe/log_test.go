package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_IncludesTraceID(t *testing.T) {
	installTestTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := StartSpan(context.Background(), "log-test")
	defer span.End()

	Logger(ctx).Info("test message")

	logged := buf.String()
	if !strings.Contains(logged, "trace_id=") {
		t.Errorf("log output missing trace_id, got: %s", logged)
	}
	if !strings.Contains(logged, "span_id=") {
		t.Errorf("log output missing span_id, got: %s", logged)
	}
}

func TestLogger_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("test message")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log output should not contain trace_id, got: %s", buf.String())
	}
}

func TestNewLogger_Format(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{format: LogFormatJSON, wantJSON: true},
		{format: LogFormatText},
		{format: ""},
		{format: "logfmt"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			var level slog.LevelVar
			level.Set(slog.LevelWarn)
			l := NewLogger(&buf, tt.format, &level)

			l.Info("dropped")
			if buf.Len() != 0 {
				t.Fatalf("info logged below warn level: %q", buf.String())
			}
			l.Warn("slow provider", "provider", "whisper")

			var rec map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &rec) == nil
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %q", isJSON, tt.wantJSON, buf.String())
			}
			if !strings.Contains(buf.String(), "whisper") {
				t.Errorf("output missing attribute: %q", buf.String())
			}
		})
	}
}
