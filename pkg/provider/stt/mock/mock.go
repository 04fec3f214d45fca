// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to script per-part transcription results and to verify the
// requests a caller sent.
//
// Example:
//
//	p := &mock.Provider{
//	    Parts: map[string]types.RawTranscriptPart{
//	        "intro": {Segments: []types.Segment{{StartSeconds: 0, DurationSeconds: 2, Text: "hello"}}},
//	    },
//	}
//	part, _ := p.Transcribe(ctx, stt.Request{PartID: "intro", Audio: r})
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Req is the request passed to Transcribe. Req.Audio has been consumed.
	Req stt.Request

	// Audio holds the bytes read from Req.Audio.
	Audio []byte
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Parts maps a part id to the result returned for it. The returned
	// part's PartID is always set to the request's PartID. Unknown ids get
	// an empty part.
	Parts map[string]types.RawTranscriptPart

	// Errs maps a part id to an error returned for it.
	Errs map[string]error

	// Delay, if positive, is waited before answering. Transcribe returns
	// ctx.Err() when ctx is cancelled during the wait.
	Delay time.Duration

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	inFlight    int
	maxInFlight int
}

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (types.RawTranscriptPart, error) {
	var audio []byte
	if req.Audio != nil {
		audio, _ = io.ReadAll(req.Audio)
	}

	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Req: req, Audio: audio})
	p.inFlight++
	p.maxInFlight = max(p.maxInFlight, p.inFlight)
	delay := p.Delay
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.RawTranscriptPart{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errs[req.PartID]; err != nil {
		return types.RawTranscriptPart{}, err
	}
	part := p.Parts[req.PartID]
	part.PartID = req.PartID
	return part, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// MaxInFlight returns the highest number of concurrent Transcribe calls
// observed. Thread-safe.
func (p *Provider) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.maxInFlight = 0
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
