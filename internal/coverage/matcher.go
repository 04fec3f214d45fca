package coverage

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically matching window to count as spoken. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when a
// window shares no phonetic code with the keyword. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher decides whether a keyword occurs in a tokenised transcript,
// tolerating recogniser misspellings. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a [Matcher] configured with the supplied options.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Spoken reports whether keyword occurs in tokens and the best similarity
// score found. tokens must come from [Tokenize].
//
// The keyword is compared against every window of the same number of tokens
// and of one token more, because recognisers often split unfamiliar words
// ("eldrinax" heard as "elder nacks"). A window matches when it equals the
// keyword, when it shares a Double Metaphone code with the keyword and
// scores at least the phonetic threshold, or when it scores at least the
// fuzzy threshold without phonetic overlap.
func (m *Matcher) Spoken(keyword string, tokens []string) (float64, bool) {
	kwTokens := Tokenize(keyword)
	if len(kwTokens) == 0 || len(tokens) == 0 {
		return 0, false
	}
	kwFull := strings.Join(kwTokens, " ")
	kwCodes := codesForTokens(kwTokens)

	var best float64
	for size := len(kwTokens); size <= len(kwTokens)+1; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			window := tokens[i : i+size]
			full := strings.Join(window, " ")
			if full == kwFull {
				return 1, true
			}

			score := bestJWScore(window, kwTokens, full, kwFull)
			threshold := m.fuzzyThreshold
			if codesOverlap(codesForTokens(window), kwCodes) {
				threshold = m.phoneticThreshold
			}
			if score >= threshold && score > best {
				best = score
			}
		}
	}
	return best, best > 0
}

// Tokenize lower-cases s and splits it into words, dropping punctuation.
// Apostrophes inside words are kept.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore returns the highest Jaro-Winkler similarity between a window
// and a keyword over the full strings and the space-stripped strings. For
// single-word keywords the best pairwise token score is considered too;
// multi-word keywords must match as a whole.
func bestJWScore(window, keyword []string, windowFull, keywordFull string) float64 {
	score := matchr.JaroWinkler(windowFull, keywordFull, false)

	if len(window) > 1 || len(keyword) > 1 {
		if s := matchr.JaroWinkler(strings.Join(window, ""), strings.Join(keyword, ""), false); s > score {
			score = s
		}
	}

	if len(keyword) == 1 {
		for _, w := range window {
			if s := matchr.JaroWinkler(w, keyword[0], false); s > score {
				score = s
			}
		}
	}
	return score
}
