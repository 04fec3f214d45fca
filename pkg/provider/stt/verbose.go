package stt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/podium/pkg/types"
)

// VerboseTranscription is the "verbose_json" response shape shared by the
// OpenAI transcription API and the whisper.cpp server.
type VerboseTranscription struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []VerboseSegment `json:"segments"`
}

// VerboseSegment is one timed segment of a [VerboseTranscription]. Times
// are in seconds from the start of the audio.
type VerboseSegment struct {
	Start        float64  `json:"start"`
	End          float64  `json:"end"`
	Text         string   `json:"text"`
	AvgLogProb   *float64 `json:"avg_logprob"`
	NoSpeechProb float64  `json:"no_speech_prob"`
}

// ParseVerbose decodes a verbose_json response body.
func ParseVerbose(data []byte) (VerboseTranscription, error) {
	var v VerboseTranscription
	if err := json.Unmarshal(data, &v); err != nil {
		return VerboseTranscription{}, fmt.Errorf("stt: parse verbose json: %w", err)
	}
	return v, nil
}

// Part converts v into a transcript part. Segments with blank text are
// dropped. Confidence is derived from the average log-probability; it is 0
// when the backend did not report one.
func (v VerboseTranscription) Part(partID string) types.RawTranscriptPart {
	part := types.RawTranscriptPart{
		PartID:   partID,
		Text:     strings.TrimSpace(v.Text),
		Segments: make([]types.Segment, 0, len(v.Segments)),
	}
	for _, s := range v.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		seg := types.Segment{
			StartSeconds:    max(s.Start, 0),
			DurationSeconds: max(s.End-s.Start, 0),
			Text:            text,
		}
		if s.AvgLogProb != nil {
			seg.Confidence = ConfidenceFromLogProb(*s.AvgLogProb)
		}
		part.Segments = append(part.Segments, seg)
	}
	return part
}
