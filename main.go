package main

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"knowledge-acquisition-api/internal/aggregator"
	"knowledge-acquisition-api/internal/analysis"
	"knowledge-acquisition-api/internal/api"
	"knowledge-acquisition-api/internal/browser"
	"knowledge-acquisition-api/internal/cache"
	"knowledge-acquisition-api/internal/config"
	"knowledge-acquisition-api/internal/dispatch"
	"knowledge-acquisition-api/internal/extractor"
	"knowledge-acquisition-api/internal/logger"
	"knowledge-acquisition-api/internal/search"
	"knowledge-acquisition-api/internal/worker"
)

const requestTimeout = 2 * time.Minute

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) > 1 && os.Args[1] == "extract" {
		os.Exit(runExtract(os.Args[2:]))
	}

	// Load configuration
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.LogError("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Create a single, optimized HTTP client for all provider requests
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	// Search: providers in reliability order, then the shared result cache
	providers := buildProviders(appConfig, httpClient)
	searchCache := cache.New[[]search.SearchResult](appConfig.CacheCapacity, appConfig.CacheSweepInterval)
	searchAggregator := aggregator.New(providers, searchCache, aggregator.Options{
		TTL:     appConfig.SearchCacheTTL,
		Timeout: appConfig.AggregateTimeout,
	})

	// Content extraction
	renderer, err := browser.NewRenderer(appConfig)
	if err != nil {
		logger.LogError("Failed to start renderer, continuing without JS rendering: %v", err)
		renderer = nil
	}
	contentExtractor := extractor.NewExtractor(appConfig, rendererFor(renderer), newYouTube(appConfig))

	// Media analysis runs on a bounded worker pool
	var media dispatch.MediaAnalyzer
	var analysisPool *worker.WorkerPool
	providerName := ""
	if appConfig.HasOpenAIConfig() {
		analyzer, err := analysis.NewOpenAIAnalyzer(analysis.OpenAIConfig{
			APIKey:          appConfig.OpenAIAPIKey,
			BaseURL:         appConfig.OpenAIBaseURL,
			VisionModel:     appConfig.OpenAIVisionModel,
			TranscribeModel: appConfig.OpenAITranscribeModel,
		}, nil)
		if err != nil {
			logger.LogError("Failed to create media analyzer: %v", err)
		} else {
			analysisPool = worker.NewWorkerPool(analyzer, appConfig.AnalysisWorkers, appConfig.AnalysisWorkers*4)
			analysisPool.Start()
			media = analysisPool
			providerName = analyzer.Name()
		}
	}
	dispatcher := dispatch.NewDispatcher(contentExtractor, media, providerName)

	// Initialize handlers
	handlers := api.NewHandler(appConfig, searchAggregator, contentExtractor, dispatcher, searchCache)

	// Create compression and timeout middleware
	handler := gzipMiddleware(timeoutMiddleware(handlers.Routes()))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appConfig.GetPort()),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", appConfig.GetPort(), "providers", searchAggregator.Providers())
		slog.Info("Available endpoints:")
		slog.Info("  GET|POST /search             - Aggregated web search")
		slog.Info("  POST     /extract-content    - Extract knowledge from a webpage")
		slog.Info("  POST     /extract-pdf        - Extract knowledge from an uploaded PDF")
		slog.Info("  POST     /analyze-multimodal - Analyze a file, URL or text")
		slog.Info("  GET      /health             - Health check endpoint")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError("Server failed to start: %v", err)
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal
	<-quit
	slog.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server forced to shutdown: %v", err)
	}

	if analysisPool != nil {
		analysisPool.Stop()
	}
	if renderer != nil {
		renderer.Cleanup()
	}
	searchCache.Shutdown()
	slog.Info("Search cache stopped", "stats", searchCache.Stats())

	slog.Info("Server exited gracefully")
}

// buildProviders returns the configured providers, most reliable first.
func buildProviders(appConfig *config.AppConfig, client *http.Client) []search.Provider {
	opts := search.Options{
		Timeout:   appConfig.ProviderTimeout,
		RateLimit: appConfig.ProviderRateLimit,
	}

	var providers []search.Provider
	if appConfig.HasSearxNGConfig() {
		providers = append(providers, search.NewSearxNGProvider(appConfig.SearxNGURL, client, opts))
	}
	if appConfig.HasSerperConfig() {
		providers = append(providers, search.NewSerperProvider(appConfig.SerperAPIURL, appConfig.SerperAPIKey, client, opts))
	}
	if len(providers) == 0 {
		slog.Warn("No search providers configured; /search will always return an empty result")
	}
	return providers
}

// rendererFor keeps a nil browser renderer from becoming a non-nil interface.
func rendererFor(r browser.Renderer) extractor.Renderer {
	if r == nil {
		return nil
	}
	return r
}

func newYouTube(appConfig *config.AppConfig) *extractor.YouTubeExtractor {
	if !appConfig.HasYouTubeConfig() {
		return nil
	}
	yt, err := extractor.NewYouTubeExtractor(context.Background(), appConfig.YouTubeAPIKey)
	if err != nil {
		logger.LogError("YouTube extraction disabled: %v", err)
		return nil
	}
	return yt
}

// runExtract implements `extract <url|file.pdf>`: one local extraction
// printed as JSON.
func runExtract(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: knowledge-acquisition-api extract <url|file.pdf>")
		return 2
	}
	target := args[0]

	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.LogError("Failed to load configuration: %v", err)
		return 1
	}
	contentExtractor := extractor.NewExtractor(appConfig, nil, newYouTube(appConfig))

	ctx, cancel := context.WithTimeout(context.Background(), appConfig.FetchTimeout+5*time.Second)
	defer cancel()

	var result *extractor.KnowledgeExtractionResult
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		result, err = contentExtractor.ExtractWebpage(ctx, target, extractor.WebpageOptions{})
	} else {
		var data []byte
		data, err = os.ReadFile(target)
		if err == nil {
			result, err = contentExtractor.ExtractPDF(ctx, data, target)
		}
	}
	if err != nil {
		logger.LogError("Extraction failed: %v", err)
		return 1
	}

	out, err := api.GetJsoniter().MarshalIndent(result, "", "  ")
	if err != nil {
		logger.LogError("Failed to encode result: %v", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

// gzipMiddleware compresses responses when the client supports it
func gzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if client supports gzip
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		// Set gzip headers
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		// Create gzip writer
		gw := gzip.NewWriter(w)
		defer func() {
			if err := gw.Close(); err != nil {
				logger.LogError("Error closing gzip writer: %v", err)
			}
		}()

		// Wrap response writer
		grw := &gzipResponseWriter{ResponseWriter: w, writer: gw}
		next.ServeHTTP(grw, r)
	})
}

// gzipResponseWriter wraps http.ResponseWriter to compress responses
type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

func (w *gzipResponseWriter) Header() http.Header {
	return w.ResponseWriter.Header()
}

// timeoutMiddleware bounds every request. The handler's context carries the
// deadline, and a timed-out request gets a JSON 503 envelope.
func timeoutMiddleware(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, requestTimeout, `{"success":false,"error":"Request timeout"}`)
}
