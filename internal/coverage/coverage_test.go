package coverage_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/podium/internal/coverage"
	"github.com/MrWong99/podium/internal/script"
	"github.com/MrWong99/podium/pkg/types"
)

func TestKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		part script.Part
		want []string
	}{
		{
			name: "explicit keywords win",
			part: script.Part{Content: "Something entirely different", Keywords: []string{"revenue", " ", "hiring", "revenue"}},
			want: []string{"revenue", "hiring"},
		},
		{
			name: "derived from content",
			part: script.Part{Content: "Revenue increased significantly while expenses remained stable. Revenue!"},
			want: []string{"revenue", "increased", "significantly", "expenses", "remained", "stable"},
		},
		{
			name: "nothing to derive",
			part: script.Part{Content: "Hi all, good to see you."},
			want: nil,
		},
		{
			name: "five letters is too short",
			part: script.Part{Content: "Hello, great times."},
			want: nil,
		},
		{
			name: "six letters is enough",
			part: script.Part{Content: "Hi all, thanks."},
			want: []string{"thanks"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := coverage.Keywords(tc.part); !slices.Equal(got, tc.want) {
				t.Errorf("Keywords = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := coverage.Tokenize("Welcome, everyone! It's Q3 -- REVENUE time.")
	want := []string{"welcome", "everyone", "it's", "q3", "revenue", "time"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokenize = %q, want %q", got, want)
	}
}

func TestChecker_CheckPart(t *testing.T) {
	t.Parallel()

	c := coverage.NewChecker()

	tests := []struct {
		name        string
		part        script.Part
		spoken      string
		wantCovered []string
		wantMissed  []string
		wantRatio   float64
	}{
		{
			name:        "partial coverage",
			part:        script.Part{ID: "p", Keywords: []string{"revenue", "hiring"}},
			spoken:      "Our revenue went up",
			wantCovered: []string{"revenue"},
			wantMissed:  []string{"hiring"},
			wantRatio:   0.5,
		},
		{
			name:        "case and punctuation insensitive",
			part:        script.Part{ID: "p", Keywords: []string{"Revenue"}},
			spoken:      "REVENUE!",
			wantCovered: []string{"Revenue"},
			wantMissed:  []string{},
			wantRatio:   1,
		},
		{
			name:        "multi-word keyword",
			part:        script.Part{ID: "p", Keywords: []string{"quarterly review"}},
			spoken:      "welcome to the quarterly review everyone",
			wantCovered: []string{"quarterly review"},
			wantMissed:  []string{},
			wantRatio:   1,
		},
		{
			name:        "misrecognised name",
			part:        script.Part{ID: "p", Keywords: []string{"Eldrinax"}},
			spoken:      "we met elder nacks yesterday",
			wantCovered: []string{"Eldrinax"},
			wantMissed:  []string{},
			wantRatio:   1,
		},
		{
			name:        "nothing spoken",
			part:        script.Part{ID: "p", Keywords: []string{"budget"}},
			spoken:      "",
			wantCovered: []string{},
			wantMissed:  []string{"budget"},
			wantRatio:   0,
		},
		{
			name:        "no keywords",
			part:        script.Part{ID: "p"},
			spoken:      "anything at all",
			wantCovered: []string{},
			wantMissed:  []string{},
			wantRatio:   1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := c.CheckPart(tc.part, tc.spoken)
			if r.PartID != tc.part.ID {
				t.Errorf("PartID = %q, want %q", r.PartID, tc.part.ID)
			}
			if !slices.Equal(r.Covered, tc.wantCovered) {
				t.Errorf("Covered = %q, want %q", r.Covered, tc.wantCovered)
			}
			if !slices.Equal(r.Missed, tc.wantMissed) {
				t.Errorf("Missed = %q, want %q", r.Missed, tc.wantMissed)
			}
			if r.Ratio != tc.wantRatio {
				t.Errorf("Ratio = %v, want %v", r.Ratio, tc.wantRatio)
			}
		})
	}
}

func TestChecker_Check(t *testing.T) {
	t.Parallel()

	s := &script.Script{
		Meta: script.Meta{ID: "demo"},
		Parts: []script.Part{
			{ID: "intro", Title: "Intro", Keywords: []string{"welcome"}},
			{ID: "outro", Title: "Outro", Keywords: []string{"questions"}},
		},
	}
	entries := []types.TranscriptEntry{
		{PartID: "outro", Content: "any questions"},
		{PartID: "unknown", Content: "welcome"},
		{PartID: "intro", Content: "hello"},
	}

	reports := coverage.NewChecker().Check(entries, s)
	if len(reports) != 2 {
		t.Fatalf("reports = %+v, want 2", reports)
	}
	if reports[0].PartID != "outro" || reports[0].Ratio != 1 {
		t.Errorf("reports[0] = %+v", reports[0])
	}
	if reports[1].PartID != "intro" || reports[1].Ratio != 0 {
		t.Errorf("reports[1] = %+v", reports[1])
	}

	if got := coverage.NewChecker().Check(entries, nil); len(got) != 0 {
		t.Errorf("Check with nil script = %+v, want none", got)
	}
}

func TestMatcher_Spoken(t *testing.T) {
	t.Parallel()

	m := coverage.NewMatcher()
	tokens := coverage.Tokenize("the budget is final")

	if score, ok := m.Spoken("budget", tokens); !ok || score != 1 {
		t.Errorf("Spoken(budget) = %v, %v; want 1, true", score, ok)
	}
	if _, ok := m.Spoken("", tokens); ok {
		t.Error("Spoken(empty keyword) = true")
	}
	if _, ok := m.Spoken("budget", nil); ok {
		t.Error("Spoken with no tokens = true")
	}

	strict := coverage.NewMatcher(coverage.WithPhoneticThreshold(1.01), coverage.WithFuzzyThreshold(1.01))
	if _, ok := strict.Spoken("eldrinax", coverage.Tokenize("elder nacks")); ok {
		t.Error("strict matcher accepted an inexact match")
	}
}
