package config_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/stt/mock"
	"github.com/MrWong99/podium/pkg/types"
)

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterSTT("mock", func(e config.ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return &mock.Provider{Parts: map[string]types.RawTranscriptPart{"intro": {PartID: "intro", Text: "hi"}}}, nil
	})
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Provider, error) {
		return nil, errors.New("no credentials")
	})

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "mock", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if gotEntry.Model != "m1" {
		t.Errorf("factory received %+v", gotEntry)
	}
	part, err := p.Transcribe(context.Background(), stt.Request{PartID: "intro", Audio: strings.NewReader("x")})
	if err != nil || part.Text != "hi" {
		t.Errorf("Transcribe = %+v, %v", part, err)
	}

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unregistered err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "broken"}); err == nil {
		t.Error("expected factory error")
	}

	if names := reg.STTNames(); !slices.Equal(names, []string{"broken", "mock"}) {
		t.Errorf("STTNames = %v", names)
	}
}
