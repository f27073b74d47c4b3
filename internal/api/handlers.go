// Package api provides the HTTP handlers for the knowledge-acquisition API.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"knowledge-acquisition-api/internal/aggregator"
	"knowledge-acquisition-api/internal/cache"
	"knowledge-acquisition-api/internal/config"
	"knowledge-acquisition-api/internal/dispatch"
	"knowledge-acquisition-api/internal/extractor"
	"knowledge-acquisition-api/internal/search"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetJsoniter exposes the jsoniter instance for other packages (like the CLI)
func GetJsoniter() jsoniter.API {
	return json
}

const (
	defaultSearchLimit = aggregator.DefaultLimit
	maxSearchLimit     = 50
	multipartMemory    = 32 << 20
)

// Searcher runs an aggregated web search.
type Searcher interface {
	Aggregate(ctx context.Context, query string, limit int) ([]search.SearchResult, error)
}

// Dispatcher routes a multimodal input.
type Dispatcher interface {
	Dispatch(ctx context.Context, in dispatch.Input) (*dispatch.AnalysisResult, error)
}

// StatsSource reports cache counters for /health.
type StatsSource interface {
	Stats() cache.Stats
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type extractContentRequest struct {
	URL    string `json:"url"`
	Render bool   `json:"render"`
}

// SearchResponse is the /search envelope.
type SearchResponse struct {
	Success   bool                  `json:"success"`
	Query     string                `json:"query"`
	Count     int                   `json:"count"`
	Results   []search.SearchResult `json:"results"`
	Timestamp time.Time             `json:"timestamp"`
}

// ResultResponse wraps a single extraction or analysis result.
type ResultResponse struct {
	Success   bool        `json:"success"`
	Result    interface{} `json:"result"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorResponse is returned for every failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Cache     cache.Stats `json:"cache"`
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	Config     *config.AppConfig
	Searcher   Searcher
	Extractor  extractor.ContentExtractor
	Dispatcher Dispatcher
	Stats      StatsSource

	now func() time.Time
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(
	appConfig *config.AppConfig,
	searcher Searcher,
	ext extractor.ContentExtractor,
	dispatcher Dispatcher,
	stats StatsSource,
) *Handler {
	return &Handler{
		Config:     appConfig,
		Searcher:   searcher,
		Extractor:  ext,
		Dispatcher: dispatcher,
		Stats:      stats,
		now:        time.Now,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", h.HandleSearch)
	mux.HandleFunc("/extract-content", h.HandleExtractContent)
	mux.HandleFunc("/extract-pdf", h.HandleExtractPDF)
	mux.HandleFunc("/analyze-multimodal", h.HandleAnalyzeMultimodal)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

// HandleSearch serves GET|POST /search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Only GET and POST methods are allowed", "")
		return
	}

	req, err := parseSearchRequest(r)
	if err != nil {
		h.respondWithValidation(w, err)
		return
	}

	slog.Info("Handling search request", "query", req.Query, "limit", req.Limit)
	results, err := h.Searcher.Aggregate(r.Context(), req.Query, req.Limit)
	if err != nil {
		if errors.Is(err, aggregator.ErrEmptyQuery) {
			h.respondWithError(w, http.StatusBadRequest, "Query parameter is required", "query")
			return
		}
		slog.Error("Search aggregation failed", "query", req.Query, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Search failed", "")
		return
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Success:   true,
		Query:     req.Query,
		Count:     len(results),
		Results:   results,
		Timestamp: h.now(),
	})
}

func parseSearchRequest(r *http.Request) (searchRequest, error) {
	var req searchRequest
	limitRaw := ""

	if r.Method == http.MethodPost && isJSON(r) {
		var body struct {
			Query string          `json:"query"`
			Limit jsoniter.Number `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return req, &dispatch.ValidationError{Field: "body", Message: "invalid JSON payload"}
		}
		req.Query = body.Query
		limitRaw = body.Limit.String()
	} else {
		if err := r.ParseForm(); err != nil {
			return req, &dispatch.ValidationError{Field: "body", Message: "invalid form payload"}
		}
		req.Query = r.Form.Get("query")
		limitRaw = r.Form.Get("limit")
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, &dispatch.ValidationError{Field: "query", Message: "query is required"}
	}

	req.Limit = defaultSearchLimit
	if limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil || n <= 0 {
			return req, &dispatch.ValidationError{Field: "limit", Message: "limit must be a positive integer"}
		}
		req.Limit = min(n, maxSearchLimit)
	}
	return req, nil
}

// HandleExtractContent serves POST /extract-content.
func (h *Handler) HandleExtractContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed", "")
		return
	}
	defer r.Body.Close()

	var req extractContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err), "body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.respondWithError(w, http.StatusBadRequest, "URL parameter is required", "url")
		return
	}

	slog.Info("Handling extract-content request", "url", req.URL, "render", req.Render)
	result, err := h.Extractor.ExtractWebpage(r.Context(), req.URL, extractor.WebpageOptions{Render: req.Render})
	if err != nil {
		if errors.Is(err, extractor.ErrInvalidURL) {
			h.respondWithError(w, http.StatusBadRequest, err.Error(), "url")
			return
		}
		slog.Error("Content extraction failed", "url", req.URL, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to extract content: %v", err), "")
		return
	}

	h.writeJSON(w, http.StatusOK, ResultResponse{Success: true, Result: result, Timestamp: h.now()})
}

// HandleExtractPDF serves POST /extract-pdf.
func (h *Handler) HandleExtractPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed", "")
		return
	}

	if err := h.parseUpload(w, r); err != nil {
		h.respondWithUploadError(w, err)
		return
	}
	upload, err := readFormFile(r, "file")
	if err != nil {
		h.respondWithUploadError(w, err)
		return
	}
	if upload == nil {
		h.respondWithError(w, http.StatusBadRequest, "A PDF file is required", "file")
		return
	}
	if err := extractor.CheckPDF(upload.ContentType, upload.Data); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "File must be application/pdf", "file")
		return
	}

	slog.Info("Handling extract-pdf request", "file", upload.Filename, "bytes", len(upload.Data))
	result, err := h.Extractor.ExtractPDF(r.Context(), upload.Data, upload.Filename)
	if err != nil {
		slog.Error("PDF extraction failed", "file", upload.Filename, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to extract PDF content", "")
		return
	}

	h.writeJSON(w, http.StatusOK, ResultResponse{Success: true, Result: result, Timestamp: h.now()})
}

// HandleAnalyzeMultimodal serves POST /analyze-multimodal.
func (h *Handler) HandleAnalyzeMultimodal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed", "")
		return
	}

	if err := h.parseUpload(w, r); err != nil {
		h.respondWithUploadError(w, err)
		return
	}
	upload, err := readFormFile(r, "file")
	if err != nil {
		h.respondWithUploadError(w, err)
		return
	}

	in, err := dispatch.ParseInput(r.FormValue("type"), upload, r.FormValue("url"), r.FormValue("text"))
	if err != nil {
		h.respondWithValidation(w, err)
		return
	}
	if u, ok := in.(dispatch.URLInput); ok {
		u.Render, _ = strconv.ParseBool(r.FormValue("render"))
		in = u
	}

	slog.Info("Handling analyze-multimodal request", "type", in.Type())
	result, err := h.Dispatcher.Dispatch(r.Context(), in)
	if err != nil {
		var ve *dispatch.ValidationError
		var ue *dispatch.UpstreamAnalysisError
		switch {
		case errors.As(err, &ve):
			h.respondWithValidation(w, err)
		case errors.As(err, &ue):
			slog.Error("Upstream analysis failed", "type", ue.Type, "error", ue.Err)
			h.respondWithError(w, http.StatusInternalServerError, ue.Error(), "")
		case errors.Is(err, extractor.ErrInvalidURL):
			h.respondWithError(w, http.StatusBadRequest, err.Error(), "url")
		default:
			slog.Error("Multimodal dispatch failed", "type", in.Type(), "error", err)
			h.respondWithError(w, http.StatusInternalServerError, "Failed to analyze input", "")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, ResultResponse{Success: true, Result: result, Timestamp: h.now()})
}

// HandleHealth serves GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Timestamp: h.now()}
	if h.Stats != nil {
		resp.Cache = h.Stats.Stats()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// parseUpload bounds the body and parses multipart or urlencoded forms.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) error {
	if h.Config != nil && h.Config.UploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Config.UploadMaxBytes)
	}
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// readFormFile returns nil without error when the field is absent.
func readFormFile(r *http.Request, field string) (*dispatch.File, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &dispatch.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (h *Handler) respondWithValidation(w http.ResponseWriter, err error) {
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		h.respondWithError(w, http.StatusBadRequest, ve.Message, ve.Field)
		return
	}
	h.respondWithError(w, http.StatusBadRequest, err.Error(), "")
}

func (h *Handler) respondWithUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.respondWithError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), "file")
		return
	}
	h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err), "")
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message, field string) {
	h.writeJSON(w, code, ErrorResponse{Success: false, Error: message, Field: field})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
