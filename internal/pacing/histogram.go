package pacing

import (
	"iter"
	"math"
	"time"

	"github.com/MrWong99/podium/pkg/types"
)

const (
	// DefaultBiasMultiplier scales every words-per-minute output upwards to
	// compensate for words the recogniser systematically misses.
	DefaultBiasMultiplier = 1.2

	// DefaultTargetBuckets is the number of buckets aimed for on long
	// recordings.
	DefaultTargetBuckets = 100

	// DefaultMinBucket is the smallest bucket used for short recordings.
	DefaultMinBucket = 3 * time.Second

	// DefaultLongMinBucket is the smallest bucket used once a recording is
	// longer than [DefaultLongThreshold].
	DefaultLongMinBucket = 5 * time.Second

	// DefaultLongThreshold separates short from long recordings.
	DefaultLongThreshold = 20 * time.Second
)

// Option is a functional option for configuring a [Builder].
type Option func(*Builder)

// WithBiasMultiplier sets the factor applied to every words-per-minute
// value. Non-positive values are ignored. Default: 1.2.
func WithBiasMultiplier(f float64) Option {
	return func(b *Builder) {
		if f > 0 && !math.IsInf(f, 0) {
			b.bias = f
		}
	}
}

// WithTargetBuckets sets the number of buckets aimed for on long recordings.
// Non-positive values are ignored. Default: 100.
func WithTargetBuckets(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.targetBuckets = int64(n)
		}
	}
}

// WithMinBucket sets the smallest bucket size for short and long
// recordings. Values below one millisecond are ignored.
// Defaults: 3s and 5s.
func WithMinBucket(short, long time.Duration) Option {
	return func(b *Builder) {
		if short >= time.Millisecond {
			b.minBucketMillis = short.Milliseconds()
		}
		if long >= time.Millisecond {
			b.longMinBucketMillis = long.Milliseconds()
		}
	}
}

// WithLongThreshold sets the total duration above which the long minimum
// bucket size applies. Default: 20s.
func WithLongThreshold(d time.Duration) Option {
	return func(b *Builder) {
		if d >= 0 {
			b.longThresholdMillis = d.Milliseconds()
		}
	}
}

// Builder computes pacing histograms. A Builder is immutable after
// construction and safe for concurrent use.
type Builder struct {
	bias                float64
	targetBuckets       int64
	minBucketMillis     int64
	longMinBucketMillis int64
	longThresholdMillis int64
}

// NewBuilder returns a [Builder] configured with the supplied options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		bias:                DefaultBiasMultiplier,
		targetBuckets:       DefaultTargetBuckets,
		minBucketMillis:     DefaultMinBucket.Milliseconds(),
		longMinBucketMillis: DefaultLongMinBucket.Milliseconds(),
		longThresholdMillis: DefaultLongThreshold.Milliseconds(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Histogram is the result of [Builder.Build].
type Histogram struct {
	// Points holds one entry per filled bucket in chronological order.
	Points []types.PacingPoint `json:"points"`

	// AverageWPM is the speaking rate over the whole recording.
	AverageWPM int64 `json:"average_wpm"`

	// BucketMillis is the bucket size used for the sweep.
	BucketMillis int64 `json:"bucket_ms"`

	// CoveredMillis is the elapsed time attributed to flushed buckets.
	CoveredMillis float64 `json:"covered_ms"`

	// TotalWords is the number of words attributed across the sweep. It is
	// fractional because segments straddling a bucket boundary are split by
	// time proportion.
	TotalWords float64 `json:"total_words"`
}

// BucketMillis returns the bucket size used for a recording of the given
// total length: the total divided by the target bucket count, but never
// less than the minimum bucket for that length class.
func (b *Builder) BucketMillis(totalDurationMillis int64) int64 {
	minBucket := b.minBucketMillis
	if totalDurationMillis > b.longThresholdMillis {
		minBucket = b.longMinBucketMillis
	}
	return max(totalDurationMillis/b.targetBuckets, minBucket)
}

// Build sweeps the segments of parts and returns the pacing histogram.
//
// totalDurationMillis is the total computed by [Aggregate]; when it is not
// positive an empty histogram is returned. Segment confidence is ignored.
// Build never divides by zero: zero-duration segments contribute no words
// and an empty trailing bucket is not emitted. Segment times are rounded to
// whole microseconds, so a segment shorter than half a microsecond counts as
// zero-duration and its words are dropped.
func (b *Builder) Build(parts []types.RawTranscriptPart, totalDurationMillis int64) Histogram {
	h := Histogram{Points: []types.PacingPoint{}}
	if totalDurationMillis <= 0 {
		return h
	}

	s := b.newSweep(parts, totalDurationMillis)
	for {
		p, ok := s.next()
		if !ok {
			break
		}
		h.Points = append(h.Points, p)
	}

	h.BucketMillis = s.bucketMicros / 1000
	h.CoveredMillis = float64(s.covered) / 1000
	h.TotalWords = s.totalWords
	h.AverageWPM = int64(math.Round(s.totalWords * 60000 * b.bias / float64(totalDurationMillis)))
	return h
}

// Points returns the pacing points of parts lazily. Each iteration starts a
// fresh sweep, so the sequence can be ranged over more than once.
func (b *Builder) Points(parts []types.RawTranscriptPart, totalDurationMillis int64) iter.Seq[types.PacingPoint] {
	return func(yield func(types.PacingPoint) bool) {
		if totalDurationMillis <= 0 {
			return
		}
		s := b.newSweep(parts, totalDurationMillis)
		for {
			p, ok := s.next()
			if !ok || !yield(p) {
				return
			}
		}
	}
}

func (b *Builder) newSweep(parts []types.RawTranscriptPart, totalDurationMillis int64) *sweep {
	return &sweep{
		parts:        parts,
		bucketMicros: b.BucketMillis(totalDurationMillis) * 1000,
		bias:         b.bias,
	}
}

// sweep is the complete state of one histogram computation. Time is kept in
// whole microseconds: every call to advance either emits a bucket, moves a
// cursor, or fills at least one microsecond of the current bucket, so the
// sweep finishes after O(buckets + segments) steps for any input.
type sweep struct {
	parts        []types.RawTranscriptPart
	bucketMicros int64
	bias         float64

	bucketIndex   int64
	bucketFilled  int64
	partIndex     int
	segmentIndex  int
	partBase      int64
	wordsInBucket float64
	totalWords    float64
	covered       int64
	finished      bool
}

// next advances the sweep until it emits a point. It returns false once the
// sweep has finished.
func (s *sweep) next() (types.PacingPoint, bool) {
	for !s.finished {
		if p, emitted := s.advance(); emitted {
			return p, true
		}
	}
	return types.PacingPoint{}, false
}

// elapsed is the position of the time cursor.
func (s *sweep) elapsed() int64 {
	return s.bucketIndex*s.bucketMicros + s.bucketFilled
}

// advance performs exactly one state transition.
func (s *sweep) advance() (types.PacingPoint, bool) {
	elapsed := s.elapsed()

	// All parts consumed: flush what is left of the current bucket.
	if s.partIndex >= len(s.parts) {
		s.finished = true
		if s.bucketFilled == 0 {
			return types.PacingPoint{}, false
		}
		return s.flush(elapsed), true
	}

	if s.bucketFilled >= s.bucketMicros {
		return s.flush(elapsed), true
	}

	part := s.parts[s.partIndex]
	if s.segmentIndex >= len(part.Segments) {
		if n := len(part.Segments); n > 0 {
			s.partBase += segmentEndMicros(part.Segments[n-1])
		}
		s.partIndex++
		s.segmentIndex = 0
		return types.PacingPoint{}, false
	}

	seg := part.Segments[s.segmentIndex]
	start := s.partBase + toMicros(seg.StartSeconds)
	length := toMicros(seg.DurationSeconds)
	end := start + length
	room := s.bucketMicros - s.bucketFilled

	switch {
	case elapsed < start:
		// Silence before the segment counts as wordless bucket time.
		s.bucketFilled += min(start-elapsed, room)
	case elapsed >= end:
		s.segmentIndex++
	default:
		used := min(end-elapsed, room)
		s.bucketFilled += used
		var words float64
		if length > 0 {
			words = float64(seg.WordCount()) * float64(used) / float64(length)
		}
		s.wordsInBucket += words
		s.totalWords += words
	}
	return types.PacingPoint{}, false
}

// flush emits the current bucket and starts the next one.
func (s *sweep) flush(elapsed int64) types.PacingPoint {
	p := types.PacingPoint{
		TimestampSeconds: float64(elapsed) / 1e6,
		WordsPerMinute:   wordsPerMinute(s.wordsInBucket, s.bucketFilled, s.bias),
	}
	s.covered += s.bucketFilled
	s.bucketIndex++
	s.bucketFilled = 0
	s.wordsInBucket = 0
	return p
}

// wordsPerMinute converts words spoken in filledMicros into a biased rate.
func wordsPerMinute(words float64, filledMicros int64, bias float64) float64 {
	if filledMicros <= 0 {
		return 0
	}
	filledMillis := float64(filledMicros) / 1000
	return 60000 * words * bias / filledMillis
}

// toMicros converts seconds to whole microseconds. Non-finite input maps
// to zero.
func toMicros(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(math.Round(seconds * 1e6))
}

func segmentEndMicros(seg types.Segment) int64 {
	return toMicros(seg.StartSeconds) + toMicros(seg.DurationSeconds)
}
