package news_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
	"github.com/kstrand/dashkit/modules/news"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Kiosk Headlines</title>
		<link>https://example.com</link>
		<item>
			<title>First story</title>
			<link>https://example.com/1</link>
			<pubDate>Mon, 21 Jul 2025 10:00:00 GMT</pubDate>
		</item>
		<item>
			<title>Second story</title>
			<link>https://example.com/2</link>
			<pubDate>Mon, 21 Jul 2025 09:00:00 GMT</pubDate>
		</item>
		<item>
			<title>Third story</title>
			<link>https://example.com/3</link>
			<pubDate>Mon, 21 Jul 2025 08:00:00 GMT</pubDate>
		</item>
	</channel>
</rss>`

func emptyConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg, err := common.LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestFetchNotConfigured(t *testing.T) {
	src := news.New(emptyConfig(t))
	_, err := src.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected an error without a feed URL")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("error should say not configured, got %q", err)
	}
}

func TestFetchHeadlines(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody)
	}))
	defer ts.Close()

	t.Setenv("DASHKIT_NEWS_FEED_URL", ts.URL)

	src := news.New(emptyConfig(t))
	v, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	headlines := v.(*model.Headlines)

	if headlines.FeedTitle != "Kiosk Headlines" {
		t.Errorf("feed title: got %q", headlines.FeedTitle)
	}
	if len(headlines.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(headlines.Items))
	}
	if headlines.Items[0].Title != "First story" || headlines.Items[0].Link != "https://example.com/1" {
		t.Errorf("unexpected first item: %+v", headlines.Items[0])
	}
	if headlines.Items[0].Published.IsZero() {
		t.Error("expected a parsed publish time")
	}
}

func TestFetchHonorsMaxItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody)
	}))
	defer ts.Close()

	t.Setenv("DASHKIT_NEWS_FEED_URL", ts.URL)
	t.Setenv("DASHKIT_NEWS_MAX_ITEMS", "2")

	src := news.New(emptyConfig(t))
	v, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := len(v.(*model.Headlines).Items); got != 2 {
		t.Errorf("expected 2 items, got %d", got)
	}
}

func TestFetchBrokenFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer ts.Close()

	t.Setenv("DASHKIT_NEWS_FEED_URL", ts.URL)

	src := news.New(emptyConfig(t))
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected an error for an unparsable feed")
	}
}
