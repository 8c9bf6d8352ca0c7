package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultFeedURL      = "https://www.youtube.com/feeds/videos.xml?channel_id=UCp_r6Z-Oh0YTf-ym71z5Nqg"
	defaultPort         = 3000
	defaultCacheMinutes = 10
	defaultFetchTimeout = 20
	defaultLazySeconds  = 30
	defaultStaticDir    = "public"
)

// Refresh modes.
const (
	// ModeBackground refreshes on a ticker and lazily on stale reads; readers
	// always get the current snapshot.
	ModeBackground = "background"
	// ModeInline refreshes inside a stale or empty read and reports failures
	// to that reader.
	ModeInline = "inline"
)

// Config holds runtime configuration loaded from environment variables and an
// optional YAML file.
type Config struct {
	FeedURL      string
	BindAddr     string
	CacheMaxAge  time.Duration
	FetchTimeout time.Duration
	LazyGap      time.Duration
	RefreshMode  string
	StaticDir    string
}

// fileConfig mirrors the YAML layout; zero values leave the env result alone.
type fileConfig struct {
	FeedURL             string `yaml:"feed_url"`
	Port                int    `yaml:"port"`
	BindAddr            string `yaml:"bind_addr"`
	CacheMinutes        int    `yaml:"cache_minutes"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	LazyRefreshSeconds  int    `yaml:"lazy_refresh_seconds"`
	RefreshMode         string `yaml:"refresh_mode"`
	StaticDir           string `yaml:"static_dir"`
}

// Load reads environment variables, filling in reasonable defaults.
func Load() Config {
	port := intWithDefault("PORT", defaultPort)
	return Config{
		FeedURL:      stringWithDefault("FEED_URL", defaultFeedURL),
		BindAddr:     stringWithDefault("BIND_ADDR", fmt.Sprintf(":%d", port)),
		CacheMaxAge:  durationFromMinutes("CACHE_MINUTES", defaultCacheMinutes),
		FetchTimeout: durationFromSeconds("FETCH_TIMEOUT_SECONDS", defaultFetchTimeout),
		LazyGap:      durationFromSeconds("LAZY_REFRESH_SECONDS", defaultLazySeconds),
		RefreshMode:  stringWithDefault("REFRESH_MODE", ModeBackground),
		StaticDir:    stringWithDefault("STATIC_DIR", defaultStaticDir),
	}
}

// LoadFile applies the environment first and then the YAML file at path on top.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if fc.FeedURL != "" {
		cfg.FeedURL = fc.FeedURL
	}
	if fc.Port > 0 {
		cfg.BindAddr = fmt.Sprintf(":%d", fc.Port)
	}
	if fc.BindAddr != "" {
		cfg.BindAddr = fc.BindAddr
	}
	if fc.CacheMinutes > 0 {
		cfg.CacheMaxAge = time.Duration(fc.CacheMinutes) * time.Minute
	}
	if fc.FetchTimeoutSeconds > 0 {
		cfg.FetchTimeout = time.Duration(fc.FetchTimeoutSeconds) * time.Second
	}
	if fc.LazyRefreshSeconds > 0 {
		cfg.LazyGap = time.Duration(fc.LazyRefreshSeconds) * time.Second
	}
	if fc.RefreshMode != "" {
		cfg.RefreshMode = fc.RefreshMode
	}
	if fc.StaticDir != "" {
		cfg.StaticDir = fc.StaticDir
	}
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c Config) Validate() error {
	if c.FeedURL == "" {
		return errors.New("feed url is required")
	}
	u, err := url.Parse(c.FeedURL)
	if err != nil {
		return fmt.Errorf("invalid feed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported feed url scheme: %q", u.Scheme)
	}
	if c.CacheMaxAge <= 0 {
		return errors.New("cache duration must be positive")
	}
	if c.RefreshMode != ModeBackground && c.RefreshMode != ModeInline {
		return fmt.Errorf("unknown refresh mode %q", c.RefreshMode)
	}
	return nil
}

func stringWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationFromMinutes(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
		log.Printf("invalid %s=%s, using default %d minutes", key, v, fallback)
	}
	return time.Duration(fallback) * time.Minute
}

func durationFromSeconds(key string, fallback int) time.Duration {
	return time.Duration(intWithDefault(key, fallback)) * time.Second
}

func intWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("invalid %s=%s, using default %d", key, v, fallback)
	}
	return fallback
}
