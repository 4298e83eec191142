package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

const xRecentSearchURL = "https://api.x.com/2/tweets/search/recent"

// tweetURLPattern matches canonical post URLs on either domain. The first
// group is the username, the second the numeric post ID.
var tweetURLPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/([^/]+)/status/(\d+)`)

// ExtractTweetID returns the numeric post ID from a post URL, or "" when
// the URL does not match the canonical shape.
func ExtractTweetID(rawURL string) string {
	m := tweetURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[2]
}

// SocialAdapter searches recent posts via the X API v2.
type SocialAdapter struct {
	bearerToken string
	baseURL     string
	client      *http.Client
}

func NewSocialAdapter(bearerToken string) *SocialAdapter {
	return &SocialAdapter{bearerToken: bearerToken, client: newHTTPClient()}
}

func NewSocialAdapterWithClient(bearerToken, baseURL string, client *http.Client) *SocialAdapter {
	return &SocialAdapter{bearerToken: bearerToken, baseURL: baseURL, client: client}
}

func (a *SocialAdapter) Source() research.SourceType { return research.SourceX }

func (a *SocialAdapter) Execute(ctx context.Context, req Request) (*Result, error) {
	endpoint := xRecentSearchURL
	if a.baseURL != "" {
		endpoint = a.baseURL
	}

	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("max_results", strconv.Itoa(maxResults(req.Options)))
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build social search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.bearerToken)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("social search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read social search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			AuthorID  string `json:"author_id"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode social search response: %w", err)
	}

	usernames := make(map[string]string, len(payload.Includes.Users))
	for _, u := range payload.Includes.Users {
		usernames[u.ID] = u.Username
	}

	items := make([]research.SourceItem, 0, len(payload.Data))
	for _, t := range payload.Data {
		username := usernames[t.AuthorID]
		if username == "" {
			username = "i"
		}
		postURL := fmt.Sprintf("https://x.com/%s/status/%s", username, t.ID)
		tweetID := ExtractTweetID(postURL)
		if tweetID == "" {
			// unparseable post URLs are dropped, not reported
			continue
		}
		items = append(items, research.SourceItem{
			Title:       t.Text,
			URL:         postURL,
			Content:     t.Text,
			TweetID:     tweetID,
			Author:      username,
			PublishedAt: t.CreatedAt,
		})
	}
	return &Result{Items: items}, nil
}
