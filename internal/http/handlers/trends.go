package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/news"
)

// newsQuery reads the edition parameters. Missing lang and country fall
// back to what the edition middleware resolved for the caller.
func newsQuery(r *http.Request) (news.Query, error) {
	params := r.URL.Query()
	q := news.Query{
		Category: params.Get("category"),
		Lang:     params.Get("lang"),
		Country:  params.Get("country"),
	}
	if q.Lang == "" {
		q.Lang = middleware.LangFromContext(r.Context())
	}
	if q.Country == "" {
		q.Country = middleware.CountryFromContext(r.Context())
	}
	if raw := strings.TrimSpace(params.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidQuery)
		}
		if limit == 0 {
			return q, fmt.Errorf("%w: limit must be at least 1", domain.ErrInvalidQuery)
		}
		q.Limit = limit
	}
	return q, nil
}

// Trends returns headlines for a category.
func (a *App) Trends(w http.ResponseWriter, r *http.Request) {
	q, err := newsQuery(r)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	resp, err := a.News.Trends(r.Context(), q)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.json(w, http.StatusOK, resp)
}

// TopicTrends searches the feed for the path topic.
func (a *App) TopicTrends(w http.ResponseWriter, r *http.Request) {
	q, err := newsQuery(r)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	// chi routes on RawPath when the request has one, leaving the
	// parameter escaped; otherwise it is already decoded.
	topic := chi.URLParam(r, "topic")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(topic); err == nil {
			topic = unescaped
		}
	}
	q.Category = ""
	q.Topic = topic
	resp, err := a.News.Topic(r.Context(), q)
	if err != nil {
		a.Logger.Error().Err(err).Str("topic", topic).Msg("topic trends failed")
		a.failErr(w, r, err)
		return
	}
	a.json(w, http.StatusOK, resp)
}

// UpdateTrends drops the cached headlines for a category and refetches them.
func (a *App) UpdateTrends(w http.ResponseWriter, r *http.Request) {
	q, err := newsQuery(r)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	resp, err := a.News.Refresh(r.Context(), q)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.json(w, http.StatusOK, domain.RefreshResponse{
		Status:   "refreshed",
		Category: news.Normalize(q).Category,
		Count:    len(resp.Articles),
	})
}
