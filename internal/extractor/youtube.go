package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeExtractor builds webpage results for YouTube videos from the Data
// API snippet instead of the page HTML, which carries little readable text.
type YouTubeExtractor struct {
	youtubeService *youtube.Service
}

// NewYouTubeExtractor creates a YouTubeExtractor. Extra client options are
// mainly for pointing the service at a test endpoint.
func NewYouTubeExtractor(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeExtractor, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	ytService, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &YouTubeExtractor{youtubeService: ytService}, nil
}

// isYouTubeHost reports whether host belongs to YouTube.
func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

// extractVideoID handles watch, short-link, shorts, embed and live URLs.
func extractVideoID(u *url.URL) string {
	var id string
	switch {
	case strings.EqualFold(u.Host, "youtu.be"):
		id = strings.Trim(u.Path, "/")
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	default:
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live" || parts[0] == "v") {
			id = parts[1]
		}
	}
	if !videoIDRe.MatchString(id) {
		return ""
	}
	return id
}

// Extract fetches the video snippet and turns title and description into a result.
func (y *YouTubeExtractor) Extract(ctx context.Context, videoURL *url.URL) (*KnowledgeExtractionResult, error) {
	videoID := extractVideoID(videoURL)
	if videoID == "" {
		return nil, fmt.Errorf("%w: could not extract video ID from %s", ErrInvalidURL, videoURL)
	}

	resp, err := y.youtubeService.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube api video details: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, &FetchError{URL: videoURL.String(), StatusCode: 404, Err: fmt.Errorf("video %s not found", videoID)}
	}

	snippet := resp.Items[0].Snippet
	slog.Debug("YouTubeExtractor: fetched snippet", "video_id", videoID, "channel", snippet.ChannelTitle)

	title := collapseWhitespace(snippet.Title)
	if title == "" {
		title = untitled
	}
	content := collapseWhitespace(strings.Join([]string{snippet.Title + ".", "Channel: " + snippet.ChannelTitle + ".", snippet.Description}, " "))
	return newResult(title, content, videoURL.String(), TypeWebpage), nil
}
