package news

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"studio/internal/domain"
	"studio/internal/infra"
)

const DefaultTTL = 15 * time.Minute

const (
	editionsKey = "news:editions"
	editionsTTL = 7 * 24 * time.Hour
	// maxEditions bounds how many distinct editions a refresh walks.
	maxEditions = 64
)

// Edition is the part of a headline query that selects a cache entry
// besides its category.
type Edition struct {
	Lang    string `json:"lang"`
	Country string `json:"country"`
	Limit   int    `json:"limit"`
}

func editionOf(q Query) Edition {
	return Edition{Lang: q.Lang, Country: q.Country, Limit: q.Limit}
}

type ServiceOptions struct {
	Source Source
	Cache  Cache
	TTL    time.Duration
	Logger infra.Logger
}

// Service reads feeds through the cache.
type Service struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger infra.Logger

	mu       sync.Mutex
	editions map[Edition]struct{}
}

func NewService(opts ServiceOptions) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := opts.Cache
	if c == nil {
		c = NewLocalCache(0)
	}
	return &Service{source: opts.Source, cache: c, ttl: ttl, logger: opts.Logger, editions: make(map[Edition]struct{})}
}

// Trends returns the headlines for a category.
func (s *Service) Trends(ctx context.Context, q Query) (*domain.NewsResponse, error) {
	q.Topic = ""
	q = Normalize(q)
	if err := Validate(q); err != nil {
		return nil, err
	}
	s.remember(ctx, editionOf(q))
	return s.cached(ctx, q, s.source.Headlines)
}

// Topic returns search results for q.Topic.
func (s *Service) Topic(ctx context.Context, q Query) (*domain.NewsResponse, error) {
	q.Category = ""
	q = Normalize(q)
	if q.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", domain.ErrInvalidQuery)
	}
	if err := Validate(q); err != nil {
		return nil, err
	}
	return s.cached(ctx, q, s.source.Search)
}

// Refresh drops the cached headlines for q and fetches them again.
func (s *Service) Refresh(ctx context.Context, q Query) (*domain.NewsResponse, error) {
	q.Topic = ""
	q = Normalize(q)
	if err := Validate(q); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, cacheKey(q)); err != nil {
		s.logger.Warn().Err(err).Str("category", q.Category).Msg("trend cache delete failed")
	}
	return s.cached(ctx, q, s.source.Headlines)
}

// RefreshAll refreshes every category of every known edition and returns
// how many refreshes failed. Known editions are the default one plus those
// requested through Trends, by this process or by any process sharing the
// cache.
func (s *Service) RefreshAll(ctx context.Context) int {
	failed := 0
	for _, ed := range s.Editions(ctx) {
		for _, category := range Categories {
			q := Query{Category: category, Lang: ed.Lang, Country: ed.Country, Limit: ed.Limit}
			if _, err := s.Refresh(ctx, q); err != nil {
				failed++
				s.logger.Error().Err(err).Str("category", category).Str("lang", ed.Lang).Str("country", ed.Country).Msg("scheduled trend refresh failed")
			}
		}
	}
	return failed
}

// Editions lists the editions RefreshAll walks, default first.
func (s *Service) Editions(ctx context.Context) []Edition {
	def := editionOf(Normalize(Query{}))
	out := []Edition{def}
	seen := map[Edition]struct{}{def: {}}
	add := func(ed Edition) {
		if _, dup := seen[ed]; dup || len(out) >= maxEditions {
			return
		}
		seen[ed] = struct{}{}
		out = append(out, ed)
	}

	for _, ed := range s.sharedEditions(ctx) {
		add(ed)
	}
	s.mu.Lock()
	local := make([]Edition, 0, len(s.editions))
	for ed := range s.editions {
		local = append(local, ed)
	}
	s.mu.Unlock()
	sort.Slice(local, func(i, j int) bool {
		a, b := local[i], local[j]
		if a.Lang != b.Lang {
			return a.Lang < b.Lang
		}
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		return a.Limit < b.Limit
	})
	for _, ed := range local {
		add(ed)
	}
	return out
}

// remember records ed the first time this process serves it and merges it
// into the shared list. Concurrent writers may drop each other's entry;
// the next request for that edition records it again.
func (s *Service) remember(ctx context.Context, ed Edition) {
	s.mu.Lock()
	_, known := s.editions[ed]
	if !known && len(s.editions) < maxEditions {
		s.editions[ed] = struct{}{}
	}
	s.mu.Unlock()
	if known {
		return
	}

	shared := s.sharedEditions(ctx)
	for _, e := range shared {
		if e == ed {
			return
		}
	}
	if len(shared) >= maxEditions {
		return
	}
	encoded, err := json.Marshal(append(shared, ed))
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, editionsKey, encoded, editionsTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("edition list write failed")
	}
}

func (s *Service) sharedEditions(ctx context.Context) []Edition {
	raw, err := s.cache.Get(ctx, editionsKey)
	if err != nil {
		if !IsMiss(err) {
			s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("edition list read failed")
		}
		return nil
	}
	var eds []Edition
	if err := json.Unmarshal(raw, &eds); err != nil {
		return nil
	}
	return eds
}

func (s *Service) cached(ctx context.Context, q Query, load func(context.Context, Query) (*domain.NewsResponse, error)) (*domain.NewsResponse, error) {
	key := cacheKey(q)
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var resp domain.NewsResponse
		if jerr := json.Unmarshal(raw, &resp); jerr == nil {
			return &resp, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !IsMiss(err):
		s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("trend cache read failed")
	}

	resp, err := load(ctx, q)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("trend cache write failed")
		}
	}
	return resp, nil
}

// Scheduler runs RefreshAll on a cron spec, so every category of every
// edition clients have asked for stays warm.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  infra.Logger
	mu      sync.Mutex
}

// NewScheduler accepts standard five-field specs and descriptors such as
// "@every 30m".
func NewScheduler(service *Service, spec string, logger infra.Logger) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), service: service, logger: logger}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule trend refresh %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	if !s.mu.TryLock() {
		s.logger.Warn().Msg("trend refresh still running, skipping")
		return
	}
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()
	failed := s.service.RefreshAll(ctx)
	s.logger.Info().Int("categories", len(Categories)).Int("failed", failed).Dur("took", time.Since(start)).Msg("trends refreshed")
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
