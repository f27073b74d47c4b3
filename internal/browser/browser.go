// Package browser renders JavaScript-heavy pages to HTML with a headless browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"knowledge-acquisition-api/internal/config"
	"knowledge-acquisition-api/internal/useragent"
)

// ErrPoolClosed is returned by Render after Cleanup.
var ErrPoolClosed = errors.New("browser pool closed")

// Renderer is satisfied by both the rod pool and the chromedp renderer.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Cleanup()
}

// NewRenderer builds the renderer selected by RENDER_ENGINE, or nil for "none".
func NewRenderer(appConfig *config.AppConfig) (Renderer, error) {
	switch appConfig.RenderEngine {
	case config.RenderNone, "":
		return nil, nil
	case config.RenderRod:
		return NewPool(appConfig.BrowserPoolSize, appConfig.FetchTimeout)
	case config.RenderChromedp:
		return NewChromedpRenderer(appConfig.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("unknown render engine %q", appConfig.RenderEngine)
	}
}

// Pool manages a pool of rod browser instances sharing one launcher.
type Pool struct {
	launcher *launcher.Launcher
	browsers chan *rod.Browser
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// NewPool launches Chromium and connects size browsers to it.
func NewPool(size int, timeout time.Duration) (*Pool, error) {
	launcherInstance := NewLauncher()
	launcherURL, err := launcherInstance.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	pool := &Pool{
		launcher: launcherInstance,
		browsers: make(chan *rod.Browser, size),
		timeout:  timeout,
	}

	for i := 0; i < size; i++ {
		b := rod.New().ControlURL(launcherURL)
		if err := b.Connect(); err != nil {
			pool.Cleanup()
			return nil, fmt.Errorf("failed to connect browser %d: %w", i, err)
		}
		pool.browsers <- b
	}

	slog.Info("Browser pool initialized", "size", size)
	return pool, nil
}

// get waits for a free browser or for ctx to end.
func (p *Pool) get(ctx context.Context) (*rod.Browser, error) {
	select {
	case b, ok := <-p.browsers:
		if !ok {
			return nil, ErrPoolClosed
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// put gives a browser back to the pool, or closes it if the pool is gone.
func (p *Pool) put(b *rod.Browser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = b.Close()
		return
	}
	p.browsers <- b
}

// Render loads url in a fresh page and returns the document HTML once loaded.
func (p *Pool) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	b, err := p.get(ctx)
	if err != nil {
		return "", err
	}
	defer p.put(b)

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("Failed to close rod page", "error", err)
		}
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: useragent.RandomDesktop()}); err != nil {
		return "", fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page %s did not load: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read rendered HTML: %w", err)
	}
	slog.Debug("Rendered page with rod", "url", url, "bytes", len(html))
	return html, nil
}

// Cleanup closes all idle browsers and the launcher. Browsers still in use
// are closed when returned.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.browsers)
	for b := range p.browsers {
		_ = b.Close()
	}
	p.launcher.Cleanup()
	slog.Info("Browser pool cleaned up")
}

// NewLauncher creates and configures a new Rod launcher with standardized settings.
func NewLauncher() *launcher.Launcher {
	return launcher.New().
		Headless(true).
		Set("--disable-blink-features", "AutomationControlled").
		Set("--no-sandbox").
		Set("--disable-setuid-sandbox").
		Set("--disable-gpu").
		Set("--disable-dev-shm-usage").
		Set("--disable-extensions").
		Set("--disable-plugins").
		Set("--disable-images").
		Set("--disable-background-networking")
}
