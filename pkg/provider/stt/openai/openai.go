// Package openai provides a batch STT provider backed by the OpenAI audio
// transcription API.
//
// Only models that support the "verbose_json" response format (whisper-1)
// return segment timings; the provider always requests it together with
// segment timestamp granularity.
package openai

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	language     string
	timeout      time.Duration
	maxRetries   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Any
// OpenAI-compatible server (e.g. a local faster-whisper gateway) works.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithLanguage sets the ISO-639-1 language used when a request carries none.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries failed requests.
// Default: 2, the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
	}, nil
}

// ModelID returns the configured model.
func (p *Provider) ModelID() string {
	return p.model
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (types.RawTranscriptPart, error) {
	if err := req.Validate(); err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("openai stt: %w", err)
	}

	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(req.Audio, path.Base(filename), contentType(filename)),
		Model:                  p.model,
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
		Temperature:            oai.Float(0),
	}
	if lang := cmp.Or(req.Language, p.language); lang != "" {
		params.Language = oai.String(lang)
	}
	if len(req.Keywords) > 0 {
		words := make([]string, 0, len(req.Keywords))
		for _, kw := range req.Keywords {
			words = append(words, kw.Keyword)
		}
		params.Prompt = oai.String(strings.Join(words, ", "))
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	v, err := stt.ParseVerbose([]byte(resp.RawJSON()))
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("openai stt: %w", err)
	}
	part := v.Part(req.PartID)
	if part.Text == "" {
		part.Text = strings.TrimSpace(resp.Text)
	}
	return part, nil
}

// contentType guesses the MIME type of an audio upload from its extension.
func contentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".mp3", ".mpga", ".mpeg":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	}
	return "application/octet-stream"
}
