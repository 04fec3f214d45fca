// Package types defines the shared types used across all podium packages.
//
// These types form the lingua franca between transcription providers, the
// pacing analysis core, the result store and the HTTP API. They are
// intentionally minimal value types; each package defines its own domain
// types, but cross-cutting data structures live here to avoid circular imports.
package types

import "strings"

// Segment is one recognised span of speech within a part's transcript.
// Offsets are relative to the start of that part's recording.
type Segment struct {
	// StartSeconds is the offset from the start of the part's recording.
	StartSeconds float64 `json:"start"`

	// DurationSeconds is the length of the span. Expected to be positive but
	// may be zero for degenerate recogniser output.
	DurationSeconds float64 `json:"duration"`

	// Text holds the recognised words, whitespace separated.
	Text string `json:"text"`

	// Confidence is the recogniser confidence (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64 `json:"confidence"`
}

// EndSeconds returns the offset at which the segment ends.
func (s Segment) EndSeconds() float64 {
	return s.StartSeconds + s.DurationSeconds
}

// WordCount returns the number of non-empty whitespace-delimited tokens in
// the segment text.
func (s Segment) WordCount() int {
	return len(strings.Fields(s.Text))
}

// RawTranscriptPart is the final transcript of one recording session for one
// presentation part.
//
// Segments are ordered by StartSeconds ascending. Consumers must not assume
// that consecutive segments, or consecutive parts, are free of gaps.
type RawTranscriptPart struct {
	// PartID references the part in the presentation script.
	PartID string `json:"part_id"`

	// Text is the full recognised text as formatted by the upstream
	// recogniser. May be empty, in which case [RawTranscriptPart.Content]
	// falls back to the segment texts.
	Text string `json:"text,omitempty"`

	// Segments is the chronological list of recognised spans.
	Segments []Segment `json:"segments"`
}

// Content returns the full recognised text of the part. It prefers the
// upstream formatted Text and otherwise joins the segment texts with a
// single space.
func (p RawTranscriptPart) Content() string {
	if p.Text != "" {
		return p.Text
	}
	texts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}

// SpanSeconds returns the end offset of the last segment, which is the
// spoken length of the part. Returns 0 for a part without segments.
func (p RawTranscriptPart) SpanSeconds() float64 {
	if len(p.Segments) == 0 {
		return 0
	}
	return p.Segments[len(p.Segments)-1].EndSeconds()
}

// TranscriptEntry is one display-ready transcript card of a results summary.
type TranscriptEntry struct {
	// PartID references the part in the presentation script.
	PartID string `json:"part_id"`

	// Title is the part title resolved from the script.
	Title string `json:"title"`

	// ImageRef is the image reference resolved from the script.
	ImageRef string `json:"image_ref"`

	// DurationMillis is the spoken length of the part.
	DurationMillis int64 `json:"duration_ms"`

	// Content is the full recognised text of the part.
	Content string `json:"content"`
}

// PacingPoint is one filled time bucket of a pacing histogram.
type PacingPoint struct {
	// TimestampSeconds is the cumulative elapsed time at the bucket's end.
	TimestampSeconds float64 `json:"timestamp"`

	// WordsPerMinute is the speaking rate within the bucket.
	WordsPerMinute float64 `json:"wpm"`
}
