package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERPER_API_KEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.GetPort())
	assert.Equal(t, 2000, cfg.CacheCapacity)
	assert.Equal(t, 5*time.Minute, cfg.SearchCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.CacheSweepInterval)
	assert.Equal(t, RenderNone, cfg.RenderEngine)
	assert.False(t, cfg.HasSerperConfig())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("AGGREGATE_TIMEOUT", "4")
	t.Setenv("CACHE_CAPACITY", "10")
	t.Setenv("RENDER_ENGINE", "ROD")
	t.Setenv("PROVIDER_RATE_LIMIT", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 4*time.Second, cfg.AggregateTimeout)
	assert.Equal(t, 10, cfg.CacheCapacity)
	assert.Equal(t, RenderRod, cfg.RenderEngine)
	assert.InDelta(t, 2.5, cfg.ProviderRateLimit, 0.0001)
}

func TestAppConfig_Validate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			Port:               "8080",
			ProviderTimeout:    time.Second,
			AggregateTimeout:   2 * time.Second,
			CacheCapacity:      10,
			CacheSweepInterval: time.Minute,
			SearchCacheTTL:     time.Minute,
			ContentCacheTTL:    time.Minute,
			FetchTimeout:       time.Second,
			FetchMaxBytes:      1024,
			UploadMaxBytes:     1024,
			RenderEngine:       RenderNone,
			AnalysisWorkers:    1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{name: "bad port", mutate: func(c *AppConfig) { c.Port = "http" }, wantErr: true},
		{name: "aggregate shorter than provider", mutate: func(c *AppConfig) { c.AggregateTimeout = 500 * time.Millisecond }, wantErr: true},
		{name: "zero capacity", mutate: func(c *AppConfig) { c.CacheCapacity = 0 }, wantErr: true},
		{name: "unknown render engine", mutate: func(c *AppConfig) { c.RenderEngine = "webkit" }, wantErr: true},
		{name: "rod without pool", mutate: func(c *AppConfig) { c.RenderEngine = RenderRod; c.BrowserPoolSize = 0 }, wantErr: true},
		{name: "no workers", mutate: func(c *AppConfig) { c.AnalysisWorkers = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
