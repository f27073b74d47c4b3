package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"knowledge-acquisition-api/internal/extractor"
)

const (
	// maxPromptRunes bounds document text sent in one prompt.
	maxPromptRunes = 12000

	systemPrompt = "You are a knowledge extraction assistant. Describe the material accurately, " +
		"then list its most important facts as short sentences. Answer in the language of the material."
	imagePrompt      = "Analyze this image. Describe what it shows and extract any visible text or data."
	transcriptPrompt = "Analyze the following transcript of a %s recording. Summarize it and list the key points.\n\n%s"
	documentPrompt   = "Analyze the following document text. Summarize it and list the key points.\n\n%s"
)

// OpenAIConfig configures the OpenAI-compatible analyzer.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	VisionModel     string
	TranscribeModel string
}

// OpenAIAnalyzer uses chat completions with image input for pictures,
// Whisper transcription followed by a chat summary for audio and video, and
// local text decoding followed by a chat summary for PDFs.
type OpenAIAnalyzer struct {
	client          *openai.Client
	visionModel     string
	transcribeModel string
}

// NewOpenAIAnalyzer creates the analyzer. httpClient may be nil.
func NewOpenAIAnalyzer(cfg OpenAIConfig, httpClient *http.Client) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = openai.GPT4oMini
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	slog.Info("OpenAI analyzer created", "vision_model", cfg.VisionModel, "transcribe_model", cfg.TranscribeModel)
	return &OpenAIAnalyzer{
		client:          openai.NewClientWithConfig(clientCfg),
		visionModel:     cfg.VisionModel,
		transcribeModel: cfg.TranscribeModel,
	}, nil
}

func (a *OpenAIAnalyzer) Name() string {
	return "openai"
}

// Analyze routes by media type.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	switch req.Type {
	case MediaImage:
		return a.analyzeImage(ctx, req)
	case MediaAudio, MediaVideo:
		return a.analyzeRecording(ctx, req)
	case MediaPDF:
		return a.analyzeDocument(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, req.Type)
	}
}

func (a *OpenAIAnalyzer) analyzeImage(ctx context.Context, req Request) (*Analysis, error) {
	mimeType := req.ContentType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(req.Data)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Data)

	text, err := a.chat(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: imagePrompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Analysis{Text: text, Model: a.visionModel}, nil
}

func (a *OpenAIAnalyzer) analyzeRecording(ctx context.Context, req Request) (*Analysis, error) {
	filename := req.Filename
	if filename == "" {
		filename = string(req.Type) + defaultExtension(req.Type)
	}

	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.transcribeModel,
		FilePath: filename,
		Reader:   bytes.NewReader(req.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		return nil, ErrEmptyResponse
	}

	text, err := a.chat(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf(transcriptPrompt, req.Type, truncateRunes(transcript, maxPromptRunes)),
	})
	if err != nil {
		return nil, err
	}
	return &Analysis{Text: text, Model: a.visionModel, Transcript: transcript}, nil
}

// analyzeDocument decodes the PDF locally. An unreadable PDF is answered
// with the soft-failure explanation and no remote call.
func (a *OpenAIAnalyzer) analyzeDocument(ctx context.Context, req Request) (*Analysis, error) {
	local := extractor.ExtractPDF(req.Data, req.Filename)
	if local.SoftFailure {
		return &Analysis{Text: local.Content, Model: "local", SoftFailure: true}, nil
	}

	text, err := a.chat(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf(documentPrompt, truncateRunes(local.Content, maxPromptRunes)),
	})
	if err != nil {
		return nil, err
	}
	return &Analysis{Text: text, Model: a.visionModel}, nil
}

func (a *OpenAIAnalyzer) chat(ctx context.Context, msg openai.ChatCompletionMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			msg,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func defaultExtension(t MediaType) string {
	if t == MediaVideo {
		return ".mp4"
	}
	return ".mp3"
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)
