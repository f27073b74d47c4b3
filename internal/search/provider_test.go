package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearxNGServer(t *testing.T, perPage int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		page, _ := strconv.Atoi(r.URL.Query().Get("pageno"))

		var items []string
		for i := 0; i < perPage; i++ {
			items = append(items, fmt.Sprintf(
				`{"url":"https://example.com/p%d/%d","title":" Page %d-%d ","content":"snippet","score":%d,"publishedDate":"2024-05-01T10:00:00Z"}`,
				page, i, page, i, 0))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"query":%q,"results":[%s]}`, r.URL.Query().Get("q"), joinJSON(items))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func joinJSON(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func TestSearxNGProvider_Search(t *testing.T) {
	srv := newSearxNGServer(t, 10)
	p := NewSearxNGProvider(srv.URL, srv.Client(), Options{Timeout: time.Second})

	results, err := p.Search(context.Background(), "golang", 15)
	require.NoError(t, err)
	require.Len(t, results, 15)

	// Page order is preserved and missing scores fall back to 1/rank.
	assert.Equal(t, "https://example.com/p1/0", results[0].URL)
	assert.Equal(t, "https://example.com/p2/4", results[14].URL)
	assert.Equal(t, "Page 1-0", results[0].Title)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
	assert.Equal(t, ProviderSearxNG, results[0].Source)
	require.NotNil(t, results[0].PublishedAt)
	assert.Equal(t, 2024, results[0].PublishedAt.Year())
}

func TestSearxNGProvider_Misconfigured(t *testing.T) {
	p := NewSearxNGProvider("", nil, Options{})
	_, err := p.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, KindMisconfigured, KindOf(err))
}

func TestSearxNGProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewSearxNGProvider(srv.URL, srv.Client(), Options{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := p.Search(context.Background(), "slow", 5)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSerperProvider_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "weather", body["q"])
		assert.EqualValues(t, 10, body["num"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic":[
			{"title":"One","link":"https://a.com/1","snippet":"first","position":1},
			{"title":"Missing link","link":"","position":2},
			{"title":"Three","link":"https://a.com/3","position":3}
		]}`)
	}))
	defer srv.Close()

	p := NewSerperProvider(srv.URL, "secret", srv.Client(), Options{Timeout: time.Second})
	results, err := p.Search(context.Background(), "weather", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "https://a.com/1", results[0].URL)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "", results[1].Snippet)
	assert.InDelta(t, 1.0/3, results[1].Score, 1e-9)
	assert.Equal(t, ProviderSerper, results[1].Source)
}

func TestSerperProvider_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: KindUnavailable},
		{name: "quota", status: http.StatusForbidden, want: KindUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, want: KindRateLimited},
		{name: "server error", status: http.StatusBadGateway, want: KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewSerperProvider(srv.URL, "secret", srv.Client(), Options{})
			_, err := p.Search(context.Background(), "q", 5)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.NotContains(t, err.Error(), "secret")
		})
	}
}

func TestSerperProvider_MissingKey(t *testing.T) {
	p := NewSerperProvider("https://google.serper.dev/search", "", nil, Options{})
	_, err := p.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, KindMisconfigured, KindOf(err))
}

func TestProvider_LocalRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"organic":[]}`)
	}))
	defer srv.Close()

	p := NewSerperProvider(srv.URL, "k", srv.Client(), Options{RateLimit: 0.001})
	_, err := p.Search(context.Background(), "q", 5)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestProvider_Weight(t *testing.T) {
	b := newBaseProvider(ProviderSerper, nil, Options{Weight: 0.5})
	assert.InDelta(t, 0.25, b.score(0, 2), 1e-9)
	assert.InDelta(t, 0.45, b.score(0.9, 1), 1e-9)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://a.com/x?utm=1", "https://a.com/x"},
		{"https://a.com/x", "https://a.com/x"},
		{"https://A.com/x/", "https://a.com/x"},
		{"https://a.com/x?utm_source=tw&id=3#top", "https://a.com/x?id=3"},
		{"https://a.com/x?b=2&a=1&fbclid=zz", "https://a.com/x?a=1&b=2"},
		{"https://a.com/", "https://a.com"},
		{"not a url/", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
	assert.Equal(t, NormalizeURL("https://a.com/x?utm=1"), NormalizeURL("https://a.com/x"))
}
