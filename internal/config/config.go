package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Render engines accepted in RENDER_ENGINE.
const (
	RenderNone     = "none"
	RenderRod      = "rod"
	RenderChromedp = "chromedp"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	Port string

	// Search providers
	SearxNGURL        string
	SerperAPIKey      string
	SerperAPIURL      string
	ProviderTimeout   time.Duration
	AggregateTimeout  time.Duration
	ProviderRateLimit float64 // requests per second per provider, 0 = unlimited

	// Result cache
	CacheCapacity      int
	CacheSweepInterval time.Duration
	SearchCacheTTL     time.Duration
	ContentCacheTTL    time.Duration

	// Content extraction
	FetchTimeout    time.Duration
	FetchMaxBytes   int
	UploadMaxBytes  int64
	RenderEngine    string
	BrowserPoolSize int
	YouTubeAPIKey   string

	// Media analysis collaborator
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIVisionModel     string
	OpenAITranscribeModel string
	AnalysisWorkers       int
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*AppConfig, error) {
	// A missing .env is fine; containers usually set the environment directly.
	if err := godotenv.Load(); err != nil {
		slog.Info("Could not load .env file (this is ok if using environment variables)", "error", err)
	}

	config := &AppConfig{
		Port:                  getEnv("PORT", "8080"),
		SearxNGURL:            getEnv("SEARXNG_URL", "http://localhost:18088"),
		SerperAPIKey:          os.Getenv("SERPER_API_KEY"),
		SerperAPIURL:          getEnv("SERPER_API_URL", "https://google.serper.dev/search"),
		ProviderTimeout:       getDuration("PROVIDER_TIMEOUT", 8*time.Second),
		AggregateTimeout:      getDuration("AGGREGATE_TIMEOUT", 10*time.Second),
		ProviderRateLimit:     getFloat("PROVIDER_RATE_LIMIT", 0),
		CacheCapacity:         getInt("CACHE_CAPACITY", 2000),
		CacheSweepInterval:    getDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
		SearchCacheTTL:        getDuration("SEARCH_CACHE_TTL", 5*time.Minute),
		ContentCacheTTL:       getDuration("CONTENT_CACHE_TTL", 10*time.Minute),
		FetchTimeout:          getDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchMaxBytes:         getInt("FETCH_MAX_BYTES", 5<<20),
		UploadMaxBytes:        int64(getInt("UPLOAD_MAX_BYTES", 25<<20)),
		RenderEngine:          strings.ToLower(getEnv("RENDER_ENGINE", RenderNone)),
		BrowserPoolSize:       getInt("BROWSER_POOL_SIZE", 2),
		YouTubeAPIKey:         os.Getenv("YOUTUBE_API_KEY"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		OpenAIVisionModel:     getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		OpenAITranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		AnalysisWorkers:       getInt("ANALYSIS_WORKERS", 4),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid
func (c *AppConfig) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port number: %s", c.Port)
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	if c.AggregateTimeout < c.ProviderTimeout {
		return fmt.Errorf("AGGREGATE_TIMEOUT (%s) must not be shorter than PROVIDER_TIMEOUT (%s)", c.AggregateTimeout, c.ProviderTimeout)
	}
	if c.ProviderRateLimit < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must not be negative")
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("CACHE_CAPACITY must be positive, got %d", c.CacheCapacity)
	}
	if c.CacheSweepInterval <= 0 || c.SearchCacheTTL <= 0 || c.ContentCacheTTL <= 0 {
		return fmt.Errorf("cache intervals and TTLs must be positive")
	}
	if c.FetchTimeout <= 0 || c.FetchMaxBytes <= 0 || c.UploadMaxBytes <= 0 {
		return fmt.Errorf("fetch timeout and size limits must be positive")
	}
	if c.AnalysisWorkers <= 0 {
		return fmt.Errorf("ANALYSIS_WORKERS must be positive, got %d", c.AnalysisWorkers)
	}

	switch c.RenderEngine {
	case RenderNone, RenderRod, RenderChromedp:
	default:
		return fmt.Errorf("invalid render engine: %s (must be 'none', 'rod' or 'chromedp')", c.RenderEngine)
	}
	if c.RenderEngine == RenderRod && c.BrowserPoolSize <= 0 {
		return fmt.Errorf("BROWSER_POOL_SIZE must be positive when RENDER_ENGINE=rod")
	}

	// Missing credentials degrade features; say which ones so a misconfiguration
	// is not mistaken for a provider with no results.
	if !c.HasSearxNGConfig() {
		slog.Warn("SEARXNG_URL not set - SearxNG provider disabled")
	}
	if !c.HasSerperConfig() {
		slog.Warn("SERPER_API_KEY not set - Serper provider will report misconfigured")
	}
	if !c.HasOpenAIConfig() {
		slog.Warn("OPENAI_API_KEY not set - image/video/pdf/audio analysis will fail")
	}
	if !c.HasYouTubeConfig() {
		slog.Warn("YOUTUBE_API_KEY not set - YouTube pages are scraped as plain webpages")
	}

	return nil
}

// GetPort returns the port as an integer
func (c *AppConfig) GetPort() int {
	port, _ := strconv.Atoi(c.Port) // Already validated in Validate()
	return port
}

// HasSearxNGConfig returns true if a SearxNG instance is configured
func (c *AppConfig) HasSearxNGConfig() bool {
	return c.SearxNGURL != ""
}

// HasSerperConfig returns true if Serper API configuration is available
func (c *AppConfig) HasSerperConfig() bool {
	return c.SerperAPIKey != ""
}

// HasOpenAIConfig returns true if the media analysis collaborator can be used
func (c *AppConfig) HasOpenAIConfig() bool {
	return c.OpenAIAPIKey != ""
}

// HasYouTubeConfig returns true if YouTube API configuration is available
func (c *AppConfig) HasYouTubeConfig() bool {
	return c.YouTubeAPIKey != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return f
}

// getDuration accepts Go duration strings ("5m") or bare seconds ("300").
func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("Invalid duration in environment, using default", "key", key, "value", value, "default", fallback)
	return fallback
}
