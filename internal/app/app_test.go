package app_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/podium/internal/app"
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/results"
	"github.com/MrWong99/podium/pkg/provider/stt/mock"
)

const demoScript = `
script:
  id: demo
  title: Demo
parts:
  - id: intro
    title: Welcome
`

const otherScript = `
script:
  id: other
  title: Other
parts:
  - id: body
    title: Body
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// testConfig returns a config serving the scripts in a fresh directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "demo.yaml", demoScript)
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Script: config.ScriptConfig{Path: dir},
	}
}

func newApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithMetrics(testMetrics(t))}, opts...)
	a, err := app.New(context.Background(), cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNew_InMemory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := newApp(t, cfg, nil)

	if _, ok := a.Store().(*results.MemStore); !ok {
		t.Errorf("store = %T, want *results.MemStore", a.Store())
	}
	if rec := get(t, a.Handler(), "/v1/scripts/demo"); rec.Code != http.StatusOK {
		t.Errorf("GET script status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := get(t, a.Handler(), "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestNew_ScriptErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
	}{
		{name: "missing path", script: filepath.Join(t.TempDir(), "absent.yaml")},
		{name: "invalid script", script: writeFile(t, t.TempDir(), "bad.yaml", "script: {id: \"\"}\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{Script: config.ScriptConfig{Path: tt.script}}
			if _, err := app.New(context.Background(), cfg, nil, app.WithMetrics(testMetrics(t))); err == nil {
				t.Fatal("New() succeeded, want error")
			}
		})
	}
}

func TestNew_EmptyScriptDirNotReady(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Script: config.ScriptConfig{Path: t.TempDir()}}
	a := newApp(t, cfg, nil)

	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no scripts loaded") {
		t.Errorf("readyz body = %s", rec.Body)
	}
}

func TestNew_Transcription(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	without := newApp(t, cfg, nil)
	with := newApp(t, cfg, &app.Providers{STT: &mock.Provider{}})

	post := func(a *app.App) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/recordings/audio", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		a.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	if code := post(without); code != http.StatusServiceUnavailable {
		t.Errorf("without provider: status = %d, want 503", code)
	}
	if code := post(with); code != http.StatusBadRequest {
		t.Errorf("with provider: status = %d, want 400", code)
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := newApp(t, cfg, nil)

	body := `{"parts":[{"part_id":"x","segments":[{"start":0,"duration":2,"text":"one two three four","confidence":1}]}]}`
	averageWPM := func() int64 {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/recordings", strings.NewReader(body)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var r results.Recording
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return r.Summary.AverageWPM
	}
	if got := averageWPM(); got != 144 {
		t.Fatalf("average before reload = %d, want 144", got)
	}

	otherDir := t.TempDir()
	writeFile(t, otherDir, "other.yaml", otherScript)

	next := *cfg
	next.Pacing.BiasMultiplier = 1
	next.Script.Path = otherDir
	next.Server.ListenAddr = "127.0.0.1:1"
	if err := a.ApplyConfig(context.Background(), cfg, &next); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}

	if got := averageWPM(); got != 120 {
		t.Errorf("average after reload = %d, want 120", got)
	}
	if rec := get(t, a.Handler(), "/v1/scripts/other"); rec.Code != http.StatusOK {
		t.Errorf("reloaded script status = %d", rec.Code)
	}
	// Scripts from the previous path stay available.
	if rec := get(t, a.Handler(), "/v1/scripts/demo"); rec.Code != http.StatusOK {
		t.Errorf("previous script status = %d", rec.Code)
	}
}

func TestApp_ApplyConfigScriptError(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := newApp(t, cfg, nil)

	next := *cfg
	next.Script.Path = filepath.Join(t.TempDir(), "missing")
	if err := a.ApplyConfig(context.Background(), cfg, &next); err == nil {
		t.Error("ApplyConfig succeeded, want script reload error")
	}
}

func TestApp_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := newApp(t, cfg, nil, app.WithStore(&results.MemStore{}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if _, err := http.Get("http://" + ln.Addr().String() + "/healthz"); err == nil {
		t.Error("server still accepting requests after Shutdown")
	}
}
