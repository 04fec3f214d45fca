// Package results persists analysed practice recordings.
//
// A [Recording] bundles the raw transcript parts the analysis ran on with
// the resulting [pacing.Summary] and the talking-point coverage. Backends
// implement [Store]; [MemStore] keeps everything in process, the postgres
// sub-package stores recordings in PostgreSQL and [Cache] fronts any store
// with Redis.
package results

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/podium/internal/coverage"
	"github.com/MrWong99/podium/internal/pacing"
	"github.com/MrWong99/podium/pkg/types"
)

// ErrNotFound is returned by Get when the requested recording does not exist.
var ErrNotFound = errors.New("recording not found")

// Default and maximum page sizes for [Store.List].
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Recording is one analysed practice run.
type Recording struct {
	// ID is a random UUID assigned on first save.
	ID string `json:"id"`

	// ScriptID names the presentation script the recording was matched
	// against. Empty when the recording was analysed without a script.
	ScriptID string `json:"script_id,omitempty"`

	// Source labels where the recording came from ("api", "audio", "live", "cli").
	Source string `json:"source"`

	// CreatedAt is set on first save.
	CreatedAt time.Time `json:"created_at"`

	// Parts is the raw transcript the summary was computed from. List
	// results leave it empty.
	Parts []types.RawTranscriptPart `json:"parts,omitempty"`

	// Summary is the pacing analysis.
	Summary pacing.Summary `json:"summary"`

	// Coverage holds one report per script part found in the recording.
	Coverage []coverage.Report `json:"coverage,omitempty"`
}

// ListOptions filters [Store.List].
type ListOptions struct {
	// Limit caps the number of results. Zero or negative means
	// [DefaultListLimit]; values above [MaxListLimit] are clamped.
	Limit int

	// ScriptID, when non-empty, restricts results to one script.
	ScriptID string
}

// EffectiveLimit returns the clamped limit.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return min(o.Limit, MaxListLimit)
}

// Store persists recordings.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Save stores rec. When rec.ID is empty a new id is generated; when
	// rec.CreatedAt is zero it is set to the current time. Both are written
	// back into rec. Saving an existing id replaces the recording.
	Save(ctx context.Context, rec *Recording) error

	// Get retrieves a recording by id.
	// Returns [ErrNotFound] when no recording with that id exists.
	Get(ctx context.Context, id string) (*Recording, error)

	// List returns recordings newest first, without their raw parts.
	List(ctx context.Context, opts ListOptions) ([]Recording, error)
}

// Prepare assigns an id and creation time to rec where they are missing.
// Store implementations call it at the start of Save.
func Prepare(rec *Recording) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

// ValidID reports whether id is a well-formed recording id.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}
