package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/extrace/notify/internal/pkg/httpretry"
)

// RSSFeedSource reads product-update headlines from an RSS or Atom feed.
type RSSFeedSource struct {
	url    string
	client httpretry.Doer
	parser *gofeed.Parser
}

// NewRSSFeedSource fetches url with a 10s timeout and up to two retries.
func NewRSSFeedSource(url string, opts ...httpretry.Option) *RSSFeedSource {
	return &RSSFeedSource{
		url:    url,
		client: httpretry.New(&http.Client{Timeout: 10 * time.Second}, 2, opts...),
		parser: gofeed.NewParser(),
	}
}

func (s *RSSFeedSource) Headlines(ctx context.Context, max int) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return headlinesFrom(feed, max), nil
}

func headlinesFrom(feed *gofeed.Feed, max int) []Headline {
	var out []Headline
	for _, item := range feed.Items {
		if max > 0 && len(out) >= max {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}
		out = append(out, Headline{Title: item.Title, Link: item.Link})
	}
	return out
}
