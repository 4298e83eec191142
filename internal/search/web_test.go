package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebAdapter_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		require.Equal(t, "solar adoption rates", r.URL.Query().Get("q"))
		require.Equal(t, "5", r.URL.Query().Get("count"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"web": {"results": [
				{"title": "Solar 2025", "url": "https://example.com/solar", "description": "Adoption is rising."},
				{"title": "Grid report", "url": "https://example.com/grid", "description": "Grid-scale storage."}
			]}
		}`))
	}))
	defer server.Close()

	adapter := NewWebAdapterWithClient("brave-key", server.URL, server.Client())
	result, err := adapter.Execute(context.Background(), Request{
		Query:   "solar adoption rates",
		Options: Options{MaxResults: 5},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, "Solar 2025", result.Items[0].Title)
	require.Equal(t, "https://example.com/solar", result.Items[0].URL)
	require.Equal(t, "Adoption is rising.", result.Items[0].Content)
}

func TestWebAdapter_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewWebAdapterWithClient("brave-key", server.URL, server.Client())
	_, err := adapter.Execute(context.Background(), Request{Query: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
}
