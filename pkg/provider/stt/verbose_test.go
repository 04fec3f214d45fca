package stt_test

import (
	"math"
	"testing"

	"github.com/MrWong99/podium/pkg/provider/stt"
)

const verboseBody = `{
  "task": "transcribe",
  "language": "english",
  "duration": 6.5,
  "text": " Welcome everyone. Let's begin.",
  "segments": [
    {"id": 0, "start": 0.0, "end": 2.5, "text": " Welcome everyone.", "avg_logprob": -0.1053, "no_speech_prob": 0.01},
    {"id": 1, "start": 2.5, "end": 2.5, "text": "  ", "avg_logprob": -1.2},
    {"id": 2, "start": 3.0, "end": 4.25, "text": " Let's begin."}
  ]
}`

func TestParseVerbose(t *testing.T) {
	t.Parallel()

	v, err := stt.ParseVerbose([]byte(verboseBody))
	if err != nil {
		t.Fatalf("ParseVerbose: %v", err)
	}
	part := v.Part("intro")

	if part.PartID != "intro" {
		t.Errorf("PartID = %q", part.PartID)
	}
	if part.Text != "Welcome everyone. Let's begin." {
		t.Errorf("Text = %q", part.Text)
	}
	if len(part.Segments) != 2 {
		t.Fatalf("segments = %+v, want 2 (blank one dropped)", part.Segments)
	}

	first := part.Segments[0]
	if first.StartSeconds != 0 || first.DurationSeconds != 2.5 || first.Text != "Welcome everyone." {
		t.Errorf("segment[0] = %+v", first)
	}
	if want := math.Exp(-0.1053); math.Abs(first.Confidence-want) > 1e-12 {
		t.Errorf("segment[0].Confidence = %v, want %v", first.Confidence, want)
	}

	second := part.Segments[1]
	if second.StartSeconds != 3 || second.DurationSeconds != 1.25 || second.Confidence != 0 {
		t.Errorf("segment[1] = %+v", second)
	}
	if got := part.SpanSeconds(); got != 4.25 {
		t.Errorf("SpanSeconds = %v, want 4.25", got)
	}
}

func TestParseVerbose_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := stt.ParseVerbose([]byte("{")); err == nil {
		t.Error("ParseVerbose: expected error for truncated json")
	}
}
