package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

var _ stt.Provider = (*STTFailover)(nil)

// STTFailover is an [stt.Provider] that fails over across several
// transcription backends.
type STTFailover struct {
	group *Failover[stt.Provider]
}

// NewSTTFailover creates an [STTFailover] with primary as the preferred
// backend. Cancelled requests and requests without audio never trip a
// breaker or fail over.
func NewSTTFailover(name string, primary stt.Provider, cfg BreakerConfig) *STTFailover {
	cfg.Neutral = neutralSTTError
	return &STTFailover{group: NewFailover(name, primary, cfg)}
}

// AddFallback registers another backend, tried after those added before it.
func (f *STTFailover) AddFallback(name string, p stt.Provider) {
	f.group.Add(name, p)
}

// Names returns the backend names in trial order.
func (f *STTFailover) Names() []string {
	return f.group.Names()
}

// State returns the breaker state of the named backend.
func (f *STTFailover) State(name string) (State, bool) {
	return f.group.State(name)
}

// Transcribe sends req to the first healthy backend. The audio is buffered
// so that every attempt reads it from the start.
func (f *STTFailover) Transcribe(ctx context.Context, req stt.Request) (types.RawTranscriptPart, error) {
	if err := req.Validate(); err != nil {
		return types.RawTranscriptPart{}, err
	}
	audio, err := io.ReadAll(req.Audio)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("resilience: read audio of part %q: %w", req.PartID, err)
	}
	return Try(ctx, f.group, func(p stt.Provider) (types.RawTranscriptPart, error) {
		attempt := req
		attempt.Audio = bytes.NewReader(audio)
		return p.Transcribe(ctx, attempt)
	})
}

func neutralSTTError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, stt.ErrEmptyAudio)
}
