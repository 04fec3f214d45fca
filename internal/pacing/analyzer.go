package pacing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/pkg/types"
)

// Summary is the complete results view of one practice recording.
type Summary struct {
	// Entries holds the per-part transcript cards.
	Entries []types.TranscriptEntry `json:"entries"`

	// TotalDurationMillis is the spoken length of the whole recording.
	TotalDurationMillis int64 `json:"total_duration_ms"`

	// AverageWPM is the speaking rate over the whole recording.
	AverageWPM int64 `json:"average_wpm"`

	// Pacing is the words-per-minute curve.
	Pacing []types.PacingPoint `json:"pacing"`

	// BucketMillis is the time resolution of Pacing.
	BucketMillis int64 `json:"bucket_ms"`

	// EstimatedWords is the number of words attributed by the sweep.
	EstimatedWords float64 `json:"estimated_words"`
}

// AnalyzerOption is a functional option for configuring an [Analyzer].
type AnalyzerOption func(*Analyzer)

// WithBuilder sets the histogram builder. Default: NewBuilder().
func WithBuilder(b *Builder) AnalyzerOption {
	return func(a *Analyzer) {
		if b != nil {
			a.builder = b
		}
	}
}

// WithMetrics sets the metrics sink. When nil (the default) no metrics are
// recorded.
func WithMetrics(m *observe.Metrics) AnalyzerOption {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// Analyzer composes [Aggregate] and [Builder.Build] into a [Summary].
// Analyzer is safe for concurrent use.
type Analyzer struct {
	builder *Builder
	metrics *observe.Metrics
}

// NewAnalyzer constructs an [Analyzer] with the supplied options.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{builder: NewBuilder()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze aggregates parts, builds the pacing histogram over the aggregated
// total duration and returns the combined summary. source labels the
// caller in telemetry (e.g. "api", "live", "cli").
//
// ctx only carries the trace; Analyze is not cancellable because it is
// bounded by the number of segments and buckets.
func (a *Analyzer) Analyze(ctx context.Context, source string, parts []types.RawTranscriptPart, lookup Lookup) Summary {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "pacing.analyze")
	defer span.End()

	agg := Aggregate(parts, lookup)
	hist := a.builder.Build(parts, agg.TotalDurationMillis)

	summary := Summary{
		Entries:             agg.Entries,
		TotalDurationMillis: agg.TotalDurationMillis,
		AverageWPM:          hist.AverageWPM,
		Pacing:              hist.Points,
		BucketMillis:        hist.BucketMillis,
		EstimatedWords:      hist.TotalWords,
	}

	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("parts", len(parts)),
		attribute.Int64("total_duration_ms", summary.TotalDurationMillis),
		attribute.Int64("average_wpm", summary.AverageWPM),
		attribute.Int("points", len(summary.Pacing)),
	)
	if a.metrics != nil {
		a.metrics.RecordAnalysis(ctx, source, time.Since(start).Seconds(), summary.AverageWPM)
	}
	observe.Logger(ctx).Debug("pacing: analysis complete",
		"source", source,
		"parts", len(parts),
		"entries", len(summary.Entries),
		"total_duration_ms", summary.TotalDurationMillis,
		"average_wpm", summary.AverageWPM,
	)
	return summary
}
