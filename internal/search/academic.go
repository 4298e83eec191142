package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

const semanticScholarURL = "https://api.semanticscholar.org/graph/v1/paper/search"

// AcademicAdapter searches papers via the Semantic Scholar Graph API.
// The API key is optional; unauthenticated requests are rate-limited.
type AcademicAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAcademicAdapter(apiKey string) *AcademicAdapter {
	return &AcademicAdapter{apiKey: apiKey, client: newHTTPClient()}
}

func NewAcademicAdapterWithClient(apiKey, baseURL string, client *http.Client) *AcademicAdapter {
	return &AcademicAdapter{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (a *AcademicAdapter) Source() research.SourceType { return research.SourceAcademic }

func (a *AcademicAdapter) Execute(ctx context.Context, req Request) (*Result, error) {
	endpoint := semanticScholarURL
	if a.baseURL != "" {
		endpoint = a.baseURL
	}

	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("limit", strconv.Itoa(maxResults(req.Options)))
	q.Set("fields", "title,abstract,url,year,authors")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build academic search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("x-api-key", a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("academic search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read academic search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("academic search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []struct {
			Title    string `json:"title"`
			Abstract string `json:"abstract"`
			URL      string `json:"url"`
			Year     int    `json:"year"`
			Authors  []struct {
				Name string `json:"name"`
			} `json:"authors"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode academic search response: %w", err)
	}

	items := make([]research.SourceItem, 0, len(payload.Data))
	for _, p := range payload.Data {
		names := make([]string, 0, len(p.Authors))
		for _, au := range p.Authors {
			if au.Name != "" {
				names = append(names, au.Name)
			}
		}
		item := research.SourceItem{
			Title:   p.Title,
			URL:     p.URL,
			Content: p.Abstract,
			Author:  strings.Join(names, ", "),
		}
		if p.Year > 0 {
			item.PublishedAt = strconv.Itoa(p.Year)
		}
		items = append(items, item)
	}
	return &Result{Items: items}, nil
}
