package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTweetID(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"x.com url", "https://x.com/someuser/status/1790000000000000001", "1790000000000000001"},
		{"twitter.com url", "https://twitter.com/someuser/status/42", "42"},
		{"no scheme", "x.com/u/status/7", "7"},
		{"fallback username", "https://x.com/i/status/123", "123"},
		{"not a status url", "https://x.com/someuser", ""},
		{"non-numeric id", "https://x.com/someuser/status/abc", ""},
		{"unrelated url", "https://example.com/status/5", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractTweetID(tc.url))
		})
	}
}

func TestSocialAdapter_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer x-token", r.Header.Get("Authorization"))
		require.Equal(t, "fusion breakthrough", r.URL.Query().Get("query"))
		require.Equal(t, "author_id", r.URL.Query().Get("expansions"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "111", "text": "Fusion milestone hit", "author_id": "u1", "created_at": "2026-01-02T03:04:05Z"},
				{"id": "222", "text": "No author record", "author_id": "u9", "created_at": "2026-01-02T03:04:06Z"}
			],
			"includes": {"users": [{"id": "u1", "username": "plasmafan"}]}
		}`))
	}))
	defer server.Close()

	adapter := NewSocialAdapterWithClient("x-token", server.URL, server.Client())
	result, err := adapter.Execute(context.Background(), Request{Query: "fusion breakthrough"})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	require.Equal(t, "https://x.com/plasmafan/status/111", result.Items[0].URL)
	require.Equal(t, "111", result.Items[0].TweetID)
	require.Equal(t, "plasmafan", result.Items[0].Author)
	require.Equal(t, "2026-01-02T03:04:05Z", result.Items[0].PublishedAt)

	// Unknown authors fall back to the "i" redirect form.
	require.Equal(t, "https://x.com/i/status/222", result.Items[1].URL)
	require.Equal(t, "222", result.Items[1].TweetID)
}

func TestSocialAdapter_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewSocialAdapterWithClient("bad-token", server.URL, server.Client())
	_, err := adapter.Execute(context.Background(), Request{Query: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 401")
}
