package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

// cacheOpTimeout bounds each cache round trip.
const cacheOpTimeout = 500 * time.Millisecond

type RecommendationService struct {
	agent    domain.RecommendationAgent
	cache    domain.Cache // nil disables caching
	cacheTTL time.Duration
	flights  singleflight.Group
}

func NewRecommendationService(a domain.RecommendationAgent, c domain.Cache, ttl time.Duration) *RecommendationService {
	return &RecommendationService{agent: a, cache: c, cacheTTL: ttl}
}

// Recommend returns the agent's answer for q. Identical concurrent queries
// share one upstream call. Only successful answers are cached.
func (s *RecommendationService) Recommend(ctx context.Context, q domain.RecommendQuery) (domain.Recommendations, error) {
	key := recommendKey(q)
	if s.cacheEnabled() {
		if rec, ok := s.cached(ctx, key); ok {
			return rec, nil
		}
	}

	flight := fmt.Sprintf("%v:%v:%s", q.Latitude, q.Longitude, q.Date)
	v, err, _ := s.flights.Do(flight, func() (any, error) {
		// the agent client applies its own deadline
		return s.agent.Recommend(context.WithoutCancel(ctx), q)
	})
	if err != nil {
		return domain.Recommendations{}, err
	}
	rec := v.(domain.Recommendations)

	if s.cacheEnabled() && len(rec.Raw) > 0 {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
		defer cancel()
		if err := s.cache.Set(cctx, key, rec.Raw, int(s.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return rec, nil
}

// cached returns the entry under key if it is still a valid answer. Entries
// that fail the payload check are dropped.
func (s *RecommendationService) cached(ctx context.Context, key string) (domain.Recommendations, bool) {
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	var raw json.RawMessage
	ok, err := s.cache.Get(cctx, key, &raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return domain.Recommendations{}, false
	}
	if !ok {
		return domain.Recommendations{}, false
	}
	rec, err := domain.DecodeRecommendations(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping invalid cache entry")
		_ = s.cache.Del(cctx, key)
		return domain.Recommendations{}, false
	}
	return rec, true
}

func (s *RecommendationService) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL >= time.Second
}

// recommendKey buckets the date by UTC hour when it parses as RFC 3339 so
// requests made a few minutes apart share an entry.
func recommendKey(q domain.RecommendQuery) string {
	bucket := q.Date
	if t, err := time.Parse(time.RFC3339, q.Date); err == nil {
		bucket = t.UTC().Format("2006-01-02T15")
	}
	return fmt.Sprintf("recommend:%.4f:%.4f:%s", q.Latitude, q.Longitude, bucket)
}
