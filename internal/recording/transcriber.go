// Package recording turns the uploaded audio of a practice recording into
// per-part transcripts.
//
// A recording is an ordered list of [PartAudio] values, one per script part
// the speaker recorded. [Transcriber] sends every part to an
// [stt.Provider] concurrently, bounded by a configurable limit, and returns
// the transcript parts in the original order so they can be handed straight
// to the pacing analysis.
package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

const defaultConcurrency = 4

// keywordBoost is the boost applied to script keywords sent as hints.
const keywordBoost = 2

// ErrNoParts is returned by [Transcriber.Transcribe] for an empty recording.
var ErrNoParts = errors.New("recording: no parts to transcribe")

// PartAudio is the recorded audio of one script part.
type PartAudio struct {
	// PartID identifies the script part.
	PartID string

	// Filename is the original upload name; its extension tells providers
	// the container format.
	Filename string

	// Data is the encoded audio file.
	Data []byte

	// Keywords are vocabulary hints for this part. When empty, the
	// transcriber's [KeywordFunc] is consulted.
	Keywords []string
}

// KeywordFunc returns the vocabulary hints for a part id.
type KeywordFunc func(partID string) []string

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithConcurrency limits how many parts are transcribed at once. Values
// below 1 are ignored. Default: 4.
func WithConcurrency(n int) Option {
	return func(t *Transcriber) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithLanguage sets the recognition language for every part.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) {
		t.language = lang
	}
}

// WithKeywords sets the source of per-part vocabulary hints.
func WithKeywords(fn KeywordFunc) Option {
	return func(t *Transcriber) {
		t.keywords = fn
	}
}

// WithMetrics records per-part transcription latency under providerName.
func WithMetrics(m *observe.Metrics, providerName string) Option {
	return func(t *Transcriber) {
		t.metrics = m
		t.providerName = providerName
	}
}

// Transcriber transcribes recordings through an [stt.Provider]. It is safe
// for concurrent use.
type Transcriber struct {
	provider     stt.Provider
	providerName string
	concurrency  int
	language     string
	keywords     KeywordFunc
	metrics      *observe.Metrics
}

// NewTranscriber returns a [Transcriber] backed by provider.
func NewTranscriber(provider stt.Provider, opts ...Option) *Transcriber {
	t := &Transcriber{
		provider:     provider,
		providerName: "unknown",
		concurrency:  defaultConcurrency,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe transcribes every part concurrently and returns the results in
// input order. The first failing part cancels the others and its error is
// returned.
func (t *Transcriber) Transcribe(ctx context.Context, parts []PartAudio) ([]types.RawTranscriptPart, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	ctx, span := observe.StartSpan(ctx, "recording.transcribe")
	span.SetAttributes(
		attribute.Int("parts", len(parts)),
		attribute.String("provider", t.providerName),
	)

	results := make([]types.RawTranscriptPart, len(parts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(t.concurrency)
	for i, pa := range parts {
		eg.Go(func() error {
			part, err := t.transcribePart(egCtx, pa)
			if err != nil {
				return fmt.Errorf("recording: transcribe part %q: %w", pa.PartID, err)
			}
			results[i] = part
			return nil
		})
	}

	err := eg.Wait()
	observe.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// transcribePart sends one part to the provider and logs how much audio
// trails the last recognised segment.
func (t *Transcriber) transcribePart(ctx context.Context, pa PartAudio) (types.RawTranscriptPart, error) {
	if len(pa.Data) == 0 {
		return types.RawTranscriptPart{}, stt.ErrEmptyAudio
	}

	req := stt.Request{
		PartID:   pa.PartID,
		Filename: pa.Filename,
		Audio:    bytes.NewReader(pa.Data),
		Language: t.language,
	}
	hints := pa.Keywords
	if len(hints) == 0 && t.keywords != nil {
		hints = t.keywords(pa.PartID)
	}
	req.Keywords = stt.Keywords(hints, keywordBoost)

	start := time.Now()
	part, err := t.provider.Transcribe(ctx, req)
	elapsed := time.Since(start)

	if t.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.metrics.RecordTranscription(ctx, t.providerName, status, elapsed.Seconds())
	}
	if err != nil {
		return types.RawTranscriptPart{}, err
	}
	part.PartID = pa.PartID

	log := observe.Logger(ctx).With("part_id", pa.PartID)
	if info, ok := InspectWAV(pa.Data); ok {
		spoken := time.Duration(part.SpanSeconds() * float64(time.Second))
		log.Debug("recording: part transcribed",
			"segments", len(part.Segments),
			"audio", info.Duration,
			"trailing_silence", max(info.Duration-spoken, 0),
			"elapsed", elapsed,
		)
	} else {
		log.Debug("recording: part transcribed",
			"segments", len(part.Segments),
			"elapsed", elapsed,
		)
	}
	return part, nil
}
