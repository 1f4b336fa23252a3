package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

const headlinesFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>World - Latest - Google News</title>
<item><title>Markets rally on rate cut hopes - Reuters</title><link>https://news.example/1</link><pubDate>Mon, 06 Oct 2025 10:00:00 GMT</pubDate><source url="https://reuters.com">Reuters</source></item>
<item><title>Storm - Season - Ends - BBC</title><link>https://news.example/2</link><pubDate>Mon, 06 Oct 2025 09:00:00 GMT</pubDate><source url="https://bbc.co.uk">BBC</source></item>
<item><title>No source here</title><link>https://news.example/3</link><pubDate>Mon, 06 Oct 2025 08:00:00 GMT</pubDate></item>
</channel></rss>`

func newFeedServer(t *testing.T, hits *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if body == "" {
			http.Error(w, "gone", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHeadlines(t *testing.T) {
	var hits atomic.Int32
	var gotURL string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotURL = r.URL.String()
		_, _ = w.Write([]byte(headlinesFeed))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherOptions{BaseURL: ts.URL})
	resp, err := f.Headlines(context.Background(), Normalize(Query{Category: "world", Limit: 2}))
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if gotURL != "/rss/headlines/section/topic/WORLD?ceid=WORLD%3Aen&gl=WORLD&hl=en" {
		t.Fatalf("url = %q", gotURL)
	}
	if resp.FeedTitle != "World - Latest - Google News" {
		t.Fatalf("feed title = %q", resp.FeedTitle)
	}
	if len(resp.Articles) != 2 {
		t.Fatalf("articles = %+v", resp.Articles)
	}
	want := domain.Article{Title: "Markets rally on rate cut hopes", Link: "https://news.example/1", Published: "Mon, 06 Oct 2025 10:00:00 GMT", Source: "Reuters"}
	if resp.Articles[0] != want {
		t.Fatalf("article = %+v", resp.Articles[0])
	}
	if resp.Articles[1].Title != "Storm" {
		t.Fatalf("title not cut at first separator: %q", resp.Articles[1].Title)
	}
}

func TestSearchSkipsIncompleteEntries(t *testing.T) {
	var hits atomic.Int32
	ts := newFeedServer(t, &hits, headlinesFeed)
	f := NewFetcher(FetcherOptions{BaseURL: ts.URL})
	resp, err := f.Search(context.Background(), Normalize(Query{Topic: "storm"}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Articles) != 2 {
		t.Fatalf("articles = %+v", resp.Articles)
	}
}

func TestSearchEmpty(t *testing.T) {
	tests := []struct {
		name string
		feed string
		want error
	}{
		{name: "no entries", feed: `<rss><channel><title>t</title></channel></rss>`, want: ErrNoEntries},
		{name: "no valid entries", feed: `<rss><channel><title>t</title><item><title>x</title></item></channel></rss>`, want: ErrNoArticles},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			ts := newFeedServer(t, &hits, tc.feed)
			_, err := NewFetcher(FetcherOptions{BaseURL: ts.URL}).Search(context.Background(), Normalize(Query{Topic: "x"}))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !strings.HasPrefix(err.Error(), "Error fetching news: ") {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Query
		wantErr string
	}{
		{name: "defaults", q: Query{}},
		{name: "bad category", q: Query{Category: "weather"}, wantErr: "category must be one of"},
		{name: "bad lang", q: Query{Lang: "de"}, wantErr: "lang must be one of"},
		{name: "bad country", q: Query{Country: "fr"}, wantErr: "country must be one of"},
		{name: "limit high", q: Query{Limit: 51}, wantErr: "limit must be at most 50"},
		{name: "limit low", q: Query{Limit: -1}, wantErr: "limit must be at least 1"},
		{name: "long topic", q: Query{Topic: strings.Repeat("a", 201)}, wantErr: "topic must be at most 200 characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(Normalize(tc.q))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidQuery) || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestServiceCachesAndRefreshes(t *testing.T) {
	var hits atomic.Int32
	ts := newFeedServer(t, &hits, headlinesFeed)
	svc := NewService(ServiceOptions{
		Source: NewFetcher(FetcherOptions{BaseURL: ts.URL}),
		Cache:  NewLocalCache(0),
		TTL:    time.Minute,
		Logger: infra.Logger{},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := svc.Trends(ctx, Query{Category: "WORLD"})
		if err != nil {
			t.Fatalf("Trends: %v", err)
		}
		if len(resp.Articles) != 3 {
			t.Fatalf("articles = %d", len(resp.Articles))
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("feed fetched %d times, want 1", hits.Load())
	}
	if _, err := svc.Refresh(ctx, Query{Category: "WORLD"}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("refresh did not refetch: %d", hits.Load())
	}
	if _, err := svc.Trends(ctx, Query{Category: "WORLD", Lang: "fr"}); err != nil {
		t.Fatalf("Trends fr: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("different edition shared a cache entry")
	}
}

func TestServiceRejectsBeforeFetching(t *testing.T) {
	var hits atomic.Int32
	ts := newFeedServer(t, &hits, headlinesFeed)
	svc := NewService(ServiceOptions{Source: NewFetcher(FetcherOptions{BaseURL: ts.URL})})
	if _, err := svc.Trends(context.Background(), Query{Category: "GOSSIP"}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Topic(context.Background(), Query{Topic: "  "}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("empty topic err = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("invalid queries reached the feed")
	}
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	var hits atomic.Int32
	ts := newFeedServer(t, &hits, "")
	svc := NewService(ServiceOptions{Source: NewFetcher(FetcherOptions{BaseURL: ts.URL})})
	for i := 0; i < 2; i++ {
		if _, err := svc.Trends(context.Background(), Query{}); err == nil {
			t.Fatalf("expected error")
		}
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestLocalCacheMissIsRedisNil(t *testing.T) {
	c := NewLocalCache(0)
	if _, err := c.Get(context.Background(), "nope"); !IsMiss(err) {
		t.Fatalf("err = %v, want miss", err)
	}
	_ = c.Set(context.Background(), "k", []byte("v"), time.Minute)
	if v, err := c.Get(context.Background(), "k"); err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	_ = c.Delete(context.Background(), "k")
	if _, err := c.Get(context.Background(), "k"); !IsMiss(err) {
		t.Fatalf("deleted key still present")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler(NewService(ServiceOptions{}), "every now and then", infra.Logger{}); err == nil {
		t.Fatalf("expected spec error")
	}
	s, err := NewScheduler(NewService(ServiceOptions{}), "@every 30m", infra.Logger{})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()
	s.Stop()
}

func TestSupported(t *testing.T) {
	if !SupportedCountry("gb") || SupportedCountry("DE") || !SupportedLang("JA") || SupportedLang("de") {
		t.Fatalf("supported lookups are wrong")
	}
}

func TestRefreshAllWarmsRequestedEditions(t *testing.T) {
	var hits atomic.Int32
	ts := newFeedServer(t, &hits, headlinesFeed)
	cache := NewLocalCache(0)
	api := NewService(ServiceOptions{Source: NewFetcher(FetcherOptions{BaseURL: ts.URL}), Cache: cache})
	ctx := context.Background()

	if _, err := api.Trends(ctx, Query{Category: "SPORTS", Lang: "fr", Country: "WORLD", Limit: 5}); err != nil {
		t.Fatalf("Trends: %v", err)
	}
	want := []Edition{{Lang: "en", Country: "WORLD", Limit: 10}, {Lang: "fr", Country: "WORLD", Limit: 5}}
	got := api.Editions(ctx)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("editions = %+v", got)
	}

	// A separate process sharing the cache refreshes the same editions.
	worker := NewService(ServiceOptions{Source: NewFetcher(FetcherOptions{BaseURL: ts.URL}), Cache: cache})
	hits.Store(0)
	if failed := worker.RefreshAll(ctx); failed != 0 {
		t.Fatalf("failed = %d", failed)
	}
	if n := int(hits.Load()); n != len(want)*len(Categories) {
		t.Fatalf("refresh fetched %d feeds, want %d", n, len(want)*len(Categories))
	}

	hits.Store(0)
	if _, err := api.Trends(ctx, Query{Category: "BUSINESS", Lang: "fr", Limit: 5}); err != nil {
		t.Fatalf("Trends: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("warmed edition missed the cache")
	}
}

func TestFetcherToleratesFeedQuirks(t *testing.T) {
	tests := []struct {
		name   string
		feed   string
		title  string
		source string
	}{
		{
			name:   "html entities in rss",
			feed:   `<rss version="2.0"><channel><title>t</title><item><title>Rock &amp; Roll &nbsp;returns - AP</title><link>https://n/1</link><pubDate>Mon, 06 Oct 2025 10:00:00 GMT</pubDate><source url="https://ap.org">AP</source></item></channel></rss>`,
			title:  "Rock & Roll",
			source: "AP",
		},
		{
			name:   "atom feed",
			feed:   `<feed xmlns="http://www.w3.org/2005/Atom"><title>t</title><entry><title>Solar record - Wire</title><link href="https://n/2"/><published>2025-10-06T10:00:00Z</published><author><name>Wire</name></author></entry></feed>`,
			title:  "Solar record",
			source: "Wire",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			ts := newFeedServer(t, &hits, tc.feed)
			resp, err := NewFetcher(FetcherOptions{BaseURL: ts.URL}).Search(context.Background(), Normalize(Query{Topic: "x"}))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(resp.Articles) != 1 {
				t.Fatalf("articles = %+v", resp.Articles)
			}
			a := resp.Articles[0]
			if !strings.HasPrefix(a.Title, tc.title) || a.Source != tc.source || a.Link == "" || a.Published == "" {
				t.Fatalf("article = %+v", a)
			}
		})
	}
}
