// Package coverage reports which talking points of a presentation script
// were actually spoken in a practice recording.
//
// Every script part has a set of keywords: the part's explicit keywords, or
// when none are configured, the distinct words of at least
// [MinDerivedKeywordLength] letters from the part's prepared content. A
// keyword counts as covered when a [Matcher] finds it in the transcript of
// the part, allowing for recogniser misspellings through Double Metaphone
// codes and Jaro-Winkler similarity.
package coverage

import (
	"slices"
	"unicode/utf8"

	"github.com/MrWong99/podium/internal/script"
	"github.com/MrWong99/podium/pkg/types"
)

// MinDerivedKeywordLength is the minimum number of letters for a content
// word to become a derived keyword.
const MinDerivedKeywordLength = 6

// Report is the keyword coverage of one transcript entry.
type Report struct {
	PartID  string   `json:"part_id"`
	Covered []string `json:"covered"`
	Missed  []string `json:"missed"`

	// Ratio is len(Covered) / number of keywords, or 1 when the part has no
	// keywords.
	Ratio float64 `json:"ratio"`
}

// Checker computes coverage reports. It is safe for concurrent use.
type Checker struct {
	matcher *Matcher
}

// NewChecker returns a [Checker] whose matcher is configured with opts.
func NewChecker(opts ...Option) *Checker {
	return &Checker{matcher: NewMatcher(opts...)}
}

// Check returns one report per entry whose part is defined in s, in entry
// order. Entries of unknown parts are skipped. A nil script yields no
// reports.
func (c *Checker) Check(entries []types.TranscriptEntry, s *script.Script) []Report {
	reports := make([]Report, 0, len(entries))
	if s == nil {
		return reports
	}
	for _, e := range entries {
		p, ok := s.Part(e.PartID)
		if !ok {
			continue
		}
		reports = append(reports, c.CheckPart(p, e.Content))
	}
	return reports
}

// CheckPart returns the coverage of part by the spoken transcript text.
func (c *Checker) CheckPart(part script.Part, spoken string) Report {
	r := Report{PartID: part.ID, Covered: []string{}, Missed: []string{}}

	keywords := Keywords(part)
	if len(keywords) == 0 {
		r.Ratio = 1
		return r
	}

	tokens := Tokenize(spoken)
	for _, kw := range keywords {
		if _, ok := c.matcher.Spoken(kw, tokens); ok {
			r.Covered = append(r.Covered, kw)
		} else {
			r.Missed = append(r.Missed, kw)
		}
	}
	r.Ratio = float64(len(r.Covered)) / float64(len(keywords))
	return r
}

// Keywords returns the keywords of part: its explicit keywords with blanks
// removed, or the distinct long words of its content in first-seen order.
func Keywords(part script.Part) []string {
	if len(part.Keywords) > 0 {
		kws := make([]string, 0, len(part.Keywords))
		for _, kw := range part.Keywords {
			if len(Tokenize(kw)) > 0 && !slices.Contains(kws, kw) {
				kws = append(kws, kw)
			}
		}
		return kws
	}

	var kws []string
	for _, w := range Tokenize(part.Content) {
		if utf8.RuneCountInString(w) >= MinDerivedKeywordLength && !slices.Contains(kws, w) {
			kws = append(kws, w)
		}
	}
	return kws
}
