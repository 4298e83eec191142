package research

// SourceItem is one retrieved source. Fields vary slightly per source type but
// title, url, and content are always present; TweetID is set only on items
// from the x source, extracted from the item URL.
type SourceItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	TweetID     string `json:"tweet_id,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Author      string `json:"author,omitempty"`
}

// SearchResult is the outcome of one executed search step. Results accumulate
// in a single append-only sequence for the duration of a run; later stages
// read the whole sequence.
type SearchResult struct {
	Type    SourceType   `json:"type"`
	Query   SearchQuery  `json:"query"`
	Results []SourceItem `json:"results"`
}
