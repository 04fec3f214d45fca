// Package whisper provides a whisper.cpp-backed batch STT provider.
//
// It talks to a running whisper-server binary, which exposes a REST API at
// POST /inference, and requests the "verbose_json" response format so that
// every recognised segment comes back with its start and end offsets.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	    whisper.WithTimeout(2*time.Minute),
//	)
//	part, err := p.Transcribe(ctx, stt.Request{PartID: "intro", Filename: "intro.wav", Audio: f})
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 2 * time.Minute

	// maxErrorBody caps how much of an error response is quoted in errors.
	maxErrorBody = 512
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with; this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server when a
// request does not carry one (e.g., "en", "de", "auto"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the HTTP timeout of a single inference request.
// Defaults to 2 minutes.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads req.Audio to the /inference endpoint as
// multipart/form-data and converts the verbose JSON response into a
// transcript part. Keywords are passed as the initial prompt because
// whisper.cpp has no keyword boosting API.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (types.RawTranscriptPart, error) {
	if err := req.Validate(); err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("whisper: %w", err)
	}

	body, contentType, err := p.encodeForm(req)
	if err != nil {
		return types.RawTranscriptPart{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.RawTranscriptPart{}, fmt.Errorf("whisper: server returned HTTP %d: %s",
			resp.StatusCode, truncate(strings.TrimSpace(string(data)), maxErrorBody))
	}

	v, err := stt.ParseVerbose(data)
	if err != nil {
		return types.RawTranscriptPart{}, fmt.Errorf("whisper: %w", err)
	}
	return v.Part(req.PartID), nil
}

// encodeForm builds the multipart request body for req.
func (p *Provider) encodeForm(req stt.Request) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, req.Audio); err != nil {
		return nil, "", fmt.Errorf("whisper: copy audio: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0"},
		{"language", lang},
		{"model", p.model},
		{"prompt", prompt(req.Keywords)},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// prompt joins keyword hints into an initial prompt.
func prompt(keywords []stt.KeywordBoost) string {
	words := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		words = append(words, kw.Keyword)
	}
	return strings.Join(words, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
