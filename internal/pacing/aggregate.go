// Package pacing turns the per-part transcripts of a practice recording into
// a results summary.
//
// Two pure, stateless steps are composed in sequence:
//
//  1. [Aggregate] walks the parts, derives each part's spoken duration from
//     its last segment and produces display-ready [types.TranscriptEntry]
//     values plus the total elapsed time.
//  2. [Builder.Build] sweeps the same segments with a fixed-size time bucket
//     and produces a words-per-minute curve ([types.PacingPoint]) together
//     with the overall average speaking rate.
//
// [Analyzer] runs both steps and adds telemetry. Nothing in this package
// performs I/O other than logging, and all functions are safe for concurrent
// use.
package pacing

import (
	"log/slog"
	"math"

	"github.com/MrWong99/podium/pkg/types"
)

// Placeholders used when a part id cannot be resolved in the script.
const (
	NoTitle = "No Title"
	NoImage = "No Image"
)

// PartInfo is the script metadata needed to render a transcript entry.
type PartInfo struct {
	Title    string
	ImageRef string
}

// Lookup resolves a part id to its script metadata.
type Lookup interface {
	// LookupPart returns the metadata of the part with the given id and
	// whether the id is known.
	LookupPart(partID string) (PartInfo, bool)
}

// LookupFunc adapts an ordinary function to the [Lookup] interface.
type LookupFunc func(partID string) (PartInfo, bool)

// LookupPart implements [Lookup].
func (f LookupFunc) LookupPart(partID string) (PartInfo, bool) {
	return f(partID)
}

// Aggregation is the result of [Aggregate].
type Aggregation struct {
	// Entries holds one entry per part with at least one segment, in input
	// order.
	Entries []types.TranscriptEntry

	// TotalDurationMillis is the sum of all entry durations.
	TotalDurationMillis int64
}

// Aggregate computes the spoken duration of every part and builds the
// transcript entries of a results summary.
//
// Parts without segments are skipped. A part's duration is the end offset of
// its last segment, rounded to whole milliseconds. Titles and image
// references are resolved through lookup; unknown ids (or a nil lookup) get
// [NoTitle] and [NoImage].
//
// A part in which no segment has a positive confidence is logged as a
// warning but still included.
func Aggregate(parts []types.RawTranscriptPart, lookup Lookup) Aggregation {
	agg := Aggregation{
		Entries: make([]types.TranscriptEntry, 0, len(parts)),
	}

	for _, part := range parts {
		if len(part.Segments) == 0 {
			slog.Debug("pacing: skipping part without segments", "part_id", part.PartID)
			continue
		}
		if !hasConfidentSegment(part.Segments) {
			slog.Warn("pacing: part has no confident segment", "part_id", part.PartID, "segments", len(part.Segments))
		}

		durationMillis := partMillis(part)
		agg.TotalDurationMillis += durationMillis

		info := PartInfo{Title: NoTitle, ImageRef: NoImage}
		if lookup != nil {
			if found, ok := lookup.LookupPart(part.PartID); ok {
				info = found
			}
		}

		agg.Entries = append(agg.Entries, types.TranscriptEntry{
			PartID:         part.PartID,
			Title:          info.Title,
			ImageRef:       info.ImageRef,
			DurationMillis: durationMillis,
			Content:        part.Content(),
		})
	}

	return agg
}

// partMillis returns the spoken length of part in whole milliseconds.
func partMillis(part types.RawTranscriptPart) int64 {
	return int64(math.Round(part.SpanSeconds() * 1000))
}

func hasConfidentSegment(segments []types.Segment) bool {
	for _, s := range segments {
		if s.Confidence > 0 {
			return true
		}
	}
	return false
}
