package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAI struct {
	chatCalls       atomic.Int32
	transcribeCalls atomic.Int32
	lastChatBody    atomic.Value
	chatStatus      int
}

func (f *fakeOpenAI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.lastChatBody.Store(string(body))
		w.Header().Set("Content-Type", "application/json")
		if f.chatStatus != 0 {
			w.WriteHeader(f.chatStatus)
			fmt.Fprint(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  A cat sits on a mat. It looks content.  "},"finish_reason":"stop"}]}`)
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		f.transcribeCalls.Add(1)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"hello and welcome to the show"}`)
	})
	return mux
}

func newTestAnalyzer(t *testing.T, f *fakeOpenAI) *OpenAIAnalyzer {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	a, err := NewOpenAIAnalyzer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, srv.Client())
	require.NoError(t, err)
	return a
}

func TestNewOpenAIAnalyzer_NotConfigured(t *testing.T) {
	_, err := NewOpenAIAnalyzer(OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenAIAnalyzer_Image(t *testing.T) {
	f := &fakeOpenAI{}
	a := newTestAnalyzer(t, f)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	res, err := a.Analyze(context.Background(), Request{Type: MediaImage, Filename: "cat.png", Data: png})
	require.NoError(t, err)
	assert.Equal(t, "A cat sits on a mat. It looks content.", res.Text)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, int32(1), f.chatCalls.Load())

	body := f.lastChatBody.Load().(string)
	assert.Contains(t, body, "data:image/png;base64,")
}

func TestOpenAIAnalyzer_Audio(t *testing.T) {
	f := &fakeOpenAI{}
	a := newTestAnalyzer(t, f)

	res, err := a.Analyze(context.Background(), Request{Type: MediaAudio, Data: []byte("ID3fake")})
	require.NoError(t, err)
	assert.Equal(t, "hello and welcome to the show", res.Transcript)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, int32(1), f.transcribeCalls.Load())
	assert.Contains(t, f.lastChatBody.Load().(string), "hello and welcome to the show")
}

func TestOpenAIAnalyzer_UnreadablePDFSkipsRemote(t *testing.T) {
	f := &fakeOpenAI{}
	a := newTestAnalyzer(t, f)

	res, err := a.Analyze(context.Background(), Request{Type: MediaPDF, Filename: "scan.pdf", Data: []byte{0, 1, 2}})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "copy and paste")
	assert.True(t, res.SoftFailure)
	assert.Equal(t, int32(0), f.chatCalls.Load())
}

func TestOpenAIAnalyzer_ReadablePDF(t *testing.T) {
	f := &fakeOpenAI{}
	a := newTestAnalyzer(t, f)

	text := strings.Repeat("The committee approved the annual budget. ", 3)
	_, err := a.Analyze(context.Background(), Request{Type: MediaPDF, Data: []byte(text)})
	require.NoError(t, err)
	assert.Contains(t, f.lastChatBody.Load().(string), "annual budget")
}

func TestOpenAIAnalyzer_UpstreamError(t *testing.T) {
	f := &fakeOpenAI{chatStatus: http.StatusInternalServerError}
	a := newTestAnalyzer(t, f)

	_, err := a.Analyze(context.Background(), Request{Type: MediaImage, Data: []byte("img")})
	require.Error(t, err)
}

func TestOpenAIAnalyzer_UnsupportedType(t *testing.T) {
	a := newTestAnalyzer(t, &fakeOpenAI{})
	_, err := a.Analyze(context.Background(), Request{Type: "hologram"})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}
