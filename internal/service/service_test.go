package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"episodegrid/internal/cache"
	"episodegrid/internal/config"
	"episodegrid/internal/episode"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <entry>
  <yt:videoId>vid1</yt:videoId>
  <title>Episode 12 || 23-02-26</title>
  <published>2024-03-02T10:00:00+00:00</published>
  <media:group><media:thumbnail url="https://i.ytimg.com/vi/vid1/hqdefault.jpg"/></media:group>
 </entry>
 <entry>
  <yt:videoId>vid2</yt:videoId>
  <title>Promo Episode</title>
  <published>2024-03-02T11:00:00+00:00</published>
 </entry>
</feed>`

type stubSource struct {
	body string
	err  error
}

func (s stubSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func newTestService(t *testing.T, src stubSource, mode string) (*Service, *cache.Cache) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	c := cache.New(src, 10*time.Minute, time.Hour, logger)
	cfg := config.Config{
		FeedURL:     "https://example.com/feed",
		BindAddr:    ":0",
		CacheMaxAge: 10 * time.Minute,
		RefreshMode: mode,
		StaticDir:   filepath.Join(t.TempDir(), "missing"),
	}
	return NewService(c, logger, cfg), c
}

func decodeEpisodes(t *testing.T, body io.Reader) []episode.Episode {
	t.Helper()
	var out []episode.Episode
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode episodes: %v", err)
	}
	return out
}

func TestEpisodesBackground(t *testing.T) {
	svc, c := newTestService(t, stubSource{body: testFeed}, config.ModeBackground)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/episodes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != episodesCacheControl {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	episodes := decodeEpisodes(t, rec.Body)
	if len(episodes) != 1 {
		t.Fatalf("episodes = %+v, want 1", episodes)
	}
	if episodes[0].ID != "vid1" || episodes[0].Title != "Episode 12" || episodes[0].Thumbnail == "" {
		t.Errorf("episode = %+v", episodes[0])
	}
}

func TestEpisodesJSONShape(t *testing.T) {
	svc, c := newTestService(t, stubSource{body: testFeed}, config.ModeBackground)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/episodes", nil))

	var raw []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("got %d items", len(raw))
	}
	for _, key := range []string{"id", "title", "published", "thumbnail"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("missing key %q in %v", key, raw[0])
		}
	}
	if len(raw[0]) != 4 {
		t.Errorf("unexpected keys in %v", raw[0])
	}
}

func TestEpisodesBackgroundFirstFetchFails(t *testing.T) {
	svc, _ := newTestService(t, stubSource{err: errors.New("connection refused")}, config.ModeBackground)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/episodes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestEpisodesInline(t *testing.T) {
	svc, c := newTestService(t, stubSource{body: testFeed}, config.ModeInline)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/episodes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if episodes := decodeEpisodes(t, rec.Body); len(episodes) != 1 {
		t.Fatalf("episodes = %+v", episodes)
	}
	if c.Stale() {
		t.Errorf("inline read should have refreshed the cache")
	}
}

func TestEpisodesInlineFailure(t *testing.T) {
	svc, _ := newTestService(t, stubSource{err: errors.New("boom")}, config.ModeInline)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/episodes", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != refreshFailedMessage {
		t.Errorf("error = %q", body["error"])
	}
}

func TestEpisodesInlineEmptyFeed(t *testing.T) {
	empty := `<feed xmlns="http://www.w3.org/2005/Atom"><title>Channel</title></feed>`
	svc, _ := newTestService(t, stubSource{body: empty}, config.ModeInline)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/episodes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestEpisodesMethodNotAllowed(t *testing.T) {
	svc, _ := newTestService(t, stubSource{body: testFeed}, config.ModeBackground)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/episodes", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	svc, c := newTestService(t, stubSource{body: testFeed}, config.ModeBackground)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Status      string `json:"status"`
		Episodes    int    `json:"episodes"`
		RefreshedAt string `json:"refreshed_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Episodes != 1 || body.RefreshedAt == "" {
		t.Errorf("health = %+v", body)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>episodes</h1>"), 0644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	svc, _ := newTestService(t, stubSource{body: testFeed}, config.ModeBackground)
	svc.cfg.StaticDir = dir
	h := svc.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "episodes") {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /missing.js = %d, want 404", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, c := newTestService(t, stubSource{body: testFeed}, config.ModeBackground)
	svc.cfg.BindAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for c.Stale() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Stale() {
		t.Fatal("initial refresh did not run")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
