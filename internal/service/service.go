package service

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"episodegrid/internal/cache"
	"episodegrid/internal/config"
	"episodegrid/internal/episode"
)

const (
	episodesCacheControl = "s-maxage=600, stale-while-revalidate=600"
	refreshFailedMessage = "Failed to parse RSS"
)

// Service serves the curated episodes over HTTP and keeps the cache fresh.
type Service struct {
	cache  *cache.Cache
	logger *log.Logger
	cfg    config.Config
}

// NewService creates a Service instance.
func NewService(c *cache.Cache, logger *log.Logger, cfg config.Config) *Service {
	return &Service{
		cache:  c,
		logger: logger,
		cfg:    cfg,
	}
}

// Handler returns the HTTP routes of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/api/episodes", s.episodesHandler)
	mux.Handle("/", s.staticHandler())
	return mux
}

// Run starts the HTTP server and, in background mode, the refresh loop.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		s.logger.Printf("HTTP server listening on %s (refresh mode %s)", s.cfg.BindAddr, s.cfg.RefreshMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("http server error: %v", err)
		}
	}()

	if s.cfg.RefreshMode == config.ModeInline {
		<-ctx.Done()
		s.logger.Println("stopping service, context cancelled")
		return nil
	}

	// Kick off an initial fetch.
	s.refreshOnce(ctx)

	ticker := time.NewTicker(s.cfg.CacheMaxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("stopping service, context cancelled")
			return nil
		case <-ticker.C:
			s.refreshOnce(ctx)
		}
	}
}

// refreshOnce runs a refresh cycle; failures are logged by the cache.
func (s *Service) refreshOnce(ctx context.Context) {
	_, _ = s.cache.Refresh(ctx)
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	status := s.cache.Status()

	resp := struct {
		Status      string     `json:"status"`
		Episodes    int        `json:"episodes"`
		RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
		LastError   string     `json:"last_error,omitempty"`
	}{
		Status:    "ok",
		Episodes:  len(snap.Episodes),
		LastError: status.Err,
	}
	if !snap.RefreshedAt.IsZero() {
		resp.RefreshedAt = &snap.RefreshedAt
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Service) episodesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var episodes []episode.Episode
	if s.cfg.RefreshMode == config.ModeInline {
		snap := s.cache.Snapshot()
		if !s.cache.Stale() && len(snap.Episodes) > 0 {
			episodes = snap.Episodes
		} else {
			fresh, err := s.cache.Refresh(r.Context())
			if err != nil {
				s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": refreshFailedMessage})
				return
			}
			episodes = fresh
		}
	} else {
		episodes = s.cache.Get(r.Context())
	}

	w.Header().Set("Cache-Control", episodesCacheControl)
	s.writeJSON(w, http.StatusOK, episodes)
}

func (s *Service) staticHandler() http.Handler {
	if info, err := os.Stat(s.cfg.StaticDir); err != nil || !info.IsDir() {
		s.logger.Printf("static dir %q not found, serving API only", s.cfg.StaticDir)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.Dir(s.cfg.StaticDir))
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response failed: %v", err)
	}
}
