package stt

import "strings"

// KeywordBoost represents a keyword to boost in STT recognition.
// Used to improve recognition of domain terms and names from the
// presentation script.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Eldrinax").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}

// Keywords converts plain keywords into boosts of the given intensity.
func Keywords(words []string, boost float64) []KeywordBoost {
	if len(words) == 0 {
		return nil
	}
	out := make([]KeywordBoost, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, KeywordBoost{Keyword: w, Boost: boost})
		}
	}
	return out
}
