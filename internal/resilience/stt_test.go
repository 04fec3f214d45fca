package resilience_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/podium/internal/resilience"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/stt/mock"
	"github.com/MrWong99/podium/pkg/types"
)

func request() stt.Request {
	return stt.Request{PartID: "intro", Filename: "intro.wav", Audio: strings.NewReader("RIFF-audio")}
}

func transcript(text string) map[string]types.RawTranscriptPart {
	return map[string]types.RawTranscriptPart{"intro": {Text: text}}
}

func TestSTTFailover_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Parts: transcript("primary")}
	secondary := &mock.Provider{Parts: transcript("secondary")}
	f := resilience.NewSTTFailover("primary", primary, resilience.BreakerConfig{})
	f.AddFallback("secondary", secondary)

	part, err := f.Transcribe(context.Background(), request())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if part.Text != "primary" || part.PartID != "intro" {
		t.Errorf("part = %+v", part)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFailover_FallbackGetsFullAudio(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Errs: map[string]error{"intro": errBackend}}
	secondary := &mock.Provider{Parts: transcript("secondary")}
	f := resilience.NewSTTFailover("primary", primary, resilience.BreakerConfig{})
	f.AddFallback("secondary", secondary)

	part, err := f.Transcribe(context.Background(), request())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if part.Text != "secondary" {
		t.Errorf("part = %+v", part)
	}
	for name, p := range map[string]*mock.Provider{"primary": primary, "secondary": secondary} {
		if p.CallCount() != 1 || string(p.TranscribeCalls[0].Audio) != "RIFF-audio" {
			t.Errorf("%s calls = %+v", name, p.TranscribeCalls)
		}
	}
}

func TestSTTFailover_AllFail(t *testing.T) {
	t.Parallel()

	errOther := errors.New("quota exceeded")
	f := resilience.NewSTTFailover("primary", &mock.Provider{Errs: map[string]error{"intro": errBackend}}, resilience.BreakerConfig{})
	f.AddFallback("secondary", &mock.Provider{Errs: map[string]error{"intro": errOther}})

	_, err := f.Transcribe(context.Background(), request())
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errBackend) || !errors.Is(err, errOther) {
		t.Errorf("err = %v, want both backend errors wrapped", err)
	}
}

func TestSTTFailover_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Errs: map[string]error{"intro": errBackend}}
	secondary := &mock.Provider{Parts: transcript("secondary")}
	f := resilience.NewSTTFailover("primary", primary, resilience.BreakerConfig{MaxFailures: 2})
	f.AddFallback("secondary", secondary)

	for range 3 {
		if _, err := f.Transcribe(context.Background(), request()); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}
	if primary.CallCount() != 2 {
		t.Errorf("primary called %d times, want 2 before its breaker opened", primary.CallCount())
	}
	if state, _ := f.State("primary"); state != resilience.StateOpen {
		t.Errorf("primary state = %v, want open", state)
	}
	if got := f.Names(); len(got) != 2 || got[0] != "primary" || got[1] != "secondary" {
		t.Errorf("Names() = %v", got)
	}
}

func TestSTTFailover_NeutralErrorsDoNotFailOver(t *testing.T) {
	t.Parallel()

	secondary := &mock.Provider{Parts: transcript("secondary")}
	f := resilience.NewSTTFailover("primary", &mock.Provider{}, resilience.BreakerConfig{})
	f.AddFallback("secondary", secondary)

	if _, err := f.Transcribe(context.Background(), stt.Request{PartID: "intro"}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("no audio: err = %v, want ErrEmptyAudio", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Transcribe(ctx, request()); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v, want context.Canceled", err)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
}
