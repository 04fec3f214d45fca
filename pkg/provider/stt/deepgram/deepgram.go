// Package deepgram provides a Deepgram-backed batch STT provider using the
// Deepgram pre-recorded audio API. It implements the stt.Provider interface.
//
// Utterance detection is enabled so that Deepgram splits the audio into
// sentence-like utterances; each utterance becomes one transcript segment.
// When a response carries no utterances the individual words are used
// instead.
package deepgram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"
	defaultTimeout   = 2 * time.Minute
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the listen endpoint, e.g. for a self-hosted
// Deepgram deployment.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		endpoint:   deepgramEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads req.Audio and converts the response into a transcript
// part.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (types.RawTranscriptPart, error) {
	if err := req.Validate(); err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: %w", err)
	}

	listenURL, err := p.buildURL(req)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, listenURL, req.Audio)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: server returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var lr listenResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("deepgram: parse response: %w", err)
	}
	return lr.part(req.PartID), nil
}

// buildURL constructs the listen endpoint URL for req.
func (p *Provider) buildURL(req stt.Request) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", cmp.Or(req.Language, p.language))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("utterances", "true")

	for _, kw := range req.Keywords {
		// Deepgram keyword format: word:boost (e.g., "Eldrinax:5")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- response ---------------------------------------------------------------

// listenResponse mirrors the subset of the Deepgram pre-recorded response
// used by the provider.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []word  `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

type word struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

// part converts the response into a transcript part using the first
// channel's best alternative for the full text.
func (lr listenResponse) part(partID string) types.RawTranscriptPart {
	part := types.RawTranscriptPart{PartID: partID, Segments: []types.Segment{}}

	var words []word
	if ch := lr.Results.Channels; len(ch) > 0 && len(ch[0].Alternatives) > 0 {
		alt := ch[0].Alternatives[0]
		part.Text = strings.TrimSpace(alt.Transcript)
		words = alt.Words
	}

	for _, u := range lr.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		part.Segments = append(part.Segments, segment(u.Start, u.End, text, u.Confidence))
	}
	if len(part.Segments) > 0 {
		return part
	}

	for _, w := range words {
		text := cmp.Or(w.PunctuatedWord, w.Word)
		if text == "" {
			continue
		}
		part.Segments = append(part.Segments, segment(w.Start, w.End, text, w.Confidence))
	}
	return part
}

func segment(start, end float64, text string, confidence float64) types.Segment {
	return types.Segment{
		StartSeconds:    max(start, 0),
		DurationSeconds: max(end-start, 0),
		Text:            text,
		Confidence:      confidence,
	}
}
