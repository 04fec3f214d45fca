// Package stt defines the Provider interface for batch Speech-to-Text
// backends.
//
// A provider turns the recorded audio of one presentation part into a
// [types.RawTranscriptPart]: the recognised text split into timed segments
// with a confidence score each. Segment start times are relative to the
// start of the part's audio.
//
// Implementations must be safe for concurrent use; the recording pipeline
// transcribes several parts of one recording in parallel.
package stt

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/MrWong99/podium/pkg/types"
)

// ErrEmptyAudio is returned by [Request.Validate] when a request carries no
// audio reader.
var ErrEmptyAudio = errors.New("stt: request has no audio")

// Request describes one part's audio to transcribe.
type Request struct {
	// PartID is copied to the resulting transcript part.
	PartID string

	// Filename is the original upload name (e.g. "intro.wav"). Providers use
	// its extension to tell the backend the container format.
	Filename string

	// Audio is the encoded audio file. It is read exactly once.
	Audio io.Reader

	// Language is the BCP-47 language tag for recognition (e.g. "en", "de").
	// An empty string lets the provider use its default or auto-detect.
	Language string

	// Keywords are vocabulary hints, typically the talking points of the
	// script part. Providers without keyword support use them as a prompt or
	// ignore them.
	Keywords []KeywordBoost
}

// Validate reports whether r can be sent to a provider.
func (r Request) Validate() error {
	if r.Audio == nil {
		return ErrEmptyAudio
	}
	return nil
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe recognises the audio in req and returns its segments.
	//
	// Returns an error if the backend cannot be reached, rejects the audio,
	// or ctx is cancelled. A successful call with silent audio returns a
	// part with no segments.
	Transcribe(ctx context.Context, req Request) (types.RawTranscriptPart, error)
}

// ConfidenceFromLogProb converts an average token log-probability, as
// reported by Whisper-family models, into a confidence in [0, 1].
func ConfidenceFromLogProb(avgLogProb float64) float64 {
	if math.IsNaN(avgLogProb) {
		return 0
	}
	return min(max(math.Exp(avgLogProb), 0), 1)
}
