package search

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/fathomhq/fathom/control-plane/internal/research"
)

const (
	enrichMinContentLen = 100
	enrichMaxContentLen = 4000
)

// Enricher replaces thin web snippets with extracted article text. Fetch
// failures leave the original snippet in place; enrichment is best effort.
type Enricher struct {
	client   *http.Client
	maxItems int
}

func NewEnricher(timeout time.Duration, maxItems int) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if maxItems <= 0 {
		maxItems = 3
	}
	return &Enricher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		maxItems: maxItems,
	}
}

// Enrich fetches full page text for up to maxItems of the given items.
func (e *Enricher) Enrich(ctx context.Context, items []research.SourceItem) []research.SourceItem {
	enriched := 0
	for i := range items {
		if enriched >= e.maxItems {
			break
		}
		if items[i].URL == "" {
			continue
		}
		text, err := e.fetchPageText(ctx, items[i].URL)
		if err != nil || text == "" {
			continue
		}
		items[i].Content = text
		enriched++
	}
	return items
}

func (e *Enricher) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "fathom-research/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("enrich: %s returned status %d", pageURL, resp.StatusCode)
		return "", nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < enrichMinContentLen {
		return "", nil
	}
	if len(text) > enrichMaxContentLen {
		text = text[:enrichMaxContentLen]
	}
	return text, nil
}
