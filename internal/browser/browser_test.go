package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-acquisition-api/internal/config"
)

func TestNewRenderer_None(t *testing.T) {
	r, err := NewRenderer(&config.AppConfig{RenderEngine: config.RenderNone})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestNewRenderer_Chromedp(t *testing.T) {
	r, err := NewRenderer(&config.AppConfig{RenderEngine: config.RenderChromedp, FetchTimeout: time.Second})
	require.NoError(t, err)
	require.IsType(t, &ChromedpRenderer{}, r)
	r.Cleanup()
}

func TestNewRenderer_Unknown(t *testing.T) {
	_, err := NewRenderer(&config.AppConfig{RenderEngine: "webkit"})
	assert.Error(t, err)
}

func TestNewLauncher_Flags(t *testing.T) {
	l := NewLauncher()
	assert.True(t, l.Has("no-sandbox"))
	assert.True(t, l.Has("headless"))
}
