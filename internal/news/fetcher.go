package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"studio/internal/domain"
	"studio/internal/infra"
)

var (
	ErrNoEntries  = errors.New("No news data available for the given topic and parameters.")
	ErrNoArticles = errors.New("No valid articles found for the given topic and parameters.")
)

// Source reads feeds.
type Source interface {
	Headlines(ctx context.Context, q Query) (*domain.NewsResponse, error)
	Search(ctx context.Context, q Query) (*domain.NewsResponse, error)
}

// sourceKey is where sourceTranslator keeps an RSS item's <source> name.
const sourceKey = "source"

// sourceTranslator keeps the <source> element of Google News items, which
// the default RSS translation drops.
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	doc, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("unexpected rss feed type %T", feed)
	}
	out, err := t.DefaultRSSTranslator.Translate(doc)
	if err != nil {
		return nil, err
	}
	for i, item := range doc.Items {
		if i >= len(out.Items) || item.Source == nil {
			continue
		}
		if name := strings.TrimSpace(item.Source.Title); name != "" {
			if out.Items[i].Custom == nil {
				out.Items[i].Custom = map[string]string{}
			}
			out.Items[i].Custom[sourceKey] = name
		}
	}
	return out, nil
}

type FetcherOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     infra.Logger
}

// Fetcher reads Google News RSS.
type Fetcher struct {
	baseURL string
	http    *http.Client
	logger  infra.Logger
}

func newParser() *gofeed.Parser {
	p := gofeed.NewParser()
	p.RSSTranslator = &sourceTranslator{}
	return p
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://news.google.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{baseURL: base, http: client, logger: opts.Logger}
}

func edition(q Query) url.Values {
	return url.Values{
		"hl":   {q.Lang},
		"gl":   {q.Country},
		"ceid": {q.Country + ":" + q.Lang},
	}
}

// Headlines reads the topic section for q.Category.
func (f *Fetcher) Headlines(ctx context.Context, q Query) (*domain.NewsResponse, error) {
	f.logger.Info().Str("category", q.Category).Str("lang", q.Lang).Str("country", q.Country).Int("limit", q.Limit).Msg("fetching trends")
	ref := "/rss/headlines/section/topic/" + url.PathEscape(q.Category) + "?" + edition(q).Encode()
	doc, err := f.fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("Error fetching news: %w", err)
	}
	return toResponse(doc, q.Limit, false), nil
}

// Search reads search results for q.Topic. Entries missing a field are
// skipped, and an empty result is an error.
func (f *Fetcher) Search(ctx context.Context, q Query) (*domain.NewsResponse, error) {
	f.logger.Info().Str("topic", q.Topic).Str("lang", q.Lang).Str("country", q.Country).Int("limit", q.Limit).Msg("fetching topic trends")
	params := edition(q)
	params.Set("q", q.Topic)
	doc, err := f.fetch(ctx, "/rss/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("Error fetching news: %w", err)
	}
	if len(doc.Items) == 0 {
		f.logger.Warn().Str("topic", q.Topic).Msg("no news data available")
		return nil, fmt.Errorf("Error fetching news: %w", ErrNoEntries)
	}
	resp := toResponse(doc, q.Limit, true)
	if len(resp.Articles) == 0 {
		f.logger.Warn().Str("topic", q.Topic).Msg("no valid articles")
		return nil, fmt.Errorf("Error fetching news: %w", ErrNoArticles)
	}
	return resp, nil
}

func (f *Fetcher) fetch(ctx context.Context, ref string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+ref, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml;q=0.9, application/xml;q=0.8, */*;q=0.5")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}
	doc, err := newParser().Parse(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return doc, nil
}

func itemSource(item *gofeed.Item) string {
	if name := item.Custom[sourceKey]; name != "" {
		return name
	}
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return ""
}

func itemPublished(item *gofeed.Item) string {
	if p := strings.TrimSpace(item.Published); p != "" {
		return p
	}
	return strings.TrimSpace(item.Updated)
}

// toResponse keeps at most limit entries. strict drops entries missing
// any field; otherwise they are kept with what they have.
func toResponse(doc *gofeed.Feed, limit int, strict bool) *domain.NewsResponse {
	items := doc.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := &domain.NewsResponse{FeedTitle: strings.TrimSpace(doc.Title), Articles: []domain.Article{}}
	for _, item := range items {
		if item == nil {
			continue
		}
		article := domain.Article{
			Title:     cleanTitle(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Published: itemPublished(item),
			Source:    itemSource(item),
		}
		if strict && (article.Title == "" || article.Link == "" || article.Published == "" || article.Source == "") {
			continue
		}
		out.Articles = append(out.Articles, article)
	}
	return out
}

// cleanTitle drops the " - Publisher" suffix Google appends.
func cleanTitle(title string) string {
	head, _, _ := strings.Cut(title, " - ")
	return strings.TrimSpace(head)
}
