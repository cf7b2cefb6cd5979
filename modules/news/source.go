package news

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
)

// defaultMaxItems bounds the ticker length.
const defaultMaxItems = 8

// Source pulls headlines for the news ticker from a single RSS/Atom feed.
//
// Implements source.Fetcher.
type Source struct {
	cfg    *common.Config
	parser *gofeed.Parser
}

// New constructs the news source. The feed URL comes from "news.feed_url".
func New(cfg *common.Config) *Source {
	parser := gofeed.NewParser()
	parser.UserAgent = "dashkit/1.0"
	return &Source{
		cfg:    cfg,
		parser: parser,
	}
}

// Fetch parses the configured feed and returns the newest headlines.
func (s *Source) Fetch(ctx context.Context) (interface{}, error) {
	feedURL := s.cfg.GetString("news.feed_url", "")
	if feedURL == "" {
		return nil, fmt.Errorf("news feed not configured")
	}
	maxItems := s.cfg.GetInt("news.max_items", defaultMaxItems)

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	items := feed.Items
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	headlines := make([]model.Headline, 0, len(items))
	for _, item := range items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		headlines = append(headlines, model.Headline{
			Title:     item.Title,
			Link:      item.Link,
			Published: published,
		})
	}

	return &model.Headlines{
		FeedTitle: feed.Title,
		Items:     headlines,
	}, nil
}
