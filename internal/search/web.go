package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// WebAdapter searches the web via the Brave Search API.
type WebAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWebAdapter(apiKey string) *WebAdapter {
	return &WebAdapter{apiKey: apiKey, client: newHTTPClient()}
}

// NewWebAdapterWithClient is used by tests to point at a fake server.
func NewWebAdapterWithClient(apiKey, baseURL string, client *http.Client) *WebAdapter {
	a := &WebAdapter{apiKey: apiKey, client: client}
	if baseURL != "" {
		a.baseURL = baseURL
	}
	return a
}

func (a *WebAdapter) Source() research.SourceType { return research.SourceWeb }

func (a *WebAdapter) Execute(ctx context.Context, req Request) (*Result, error) {
	endpoint := braveSearchURL
	if a.baseURL != "" {
		endpoint = a.baseURL
	}

	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("count", strconv.Itoa(maxResults(req.Options)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build web search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read web search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}

	items := make([]research.SourceItem, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		items = append(items, research.SourceItem{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Description,
		})
	}
	return &Result{Items: items}, nil
}
