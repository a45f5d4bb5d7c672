package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 10
)

type GeocodeService struct {
	geo      domain.Geocoder
	cache    domain.Cache
	cacheTTL time.Duration
	lang     string
}

func NewGeocodeService(g domain.Geocoder, c domain.Cache, ttl time.Duration, lang string) *GeocodeService {
	if lang == "" {
		lang = "ja"
	}
	return &GeocodeService{geo: g, cache: c, cacheTTL: ttl, lang: lang}
}

// Reverse resolves c to a place. An empty lang falls back to the service default.
func (s *GeocodeService) Reverse(ctx context.Context, c domain.Coordinates, lang string) (domain.Place, error) {
	if !c.Valid() {
		return domain.Place{}, domain.ErrInvalidLocation
	}
	lang = s.pickLang(lang)
	key := fmt.Sprintf("geocode:reverse:%.5f:%.5f:%s", c.Latitude, c.Longitude, lang)

	var p domain.Place
	if s.getCached(ctx, key, &p) {
		return p, nil
	}
	p, err := s.geo.Reverse(ctx, c, lang)
	if err != nil {
		return domain.Place{}, err
	}
	s.setCached(ctx, key, p)
	return p, nil
}

// Search returns up to limit places matching query; limit 0 means the default.
func (s *GeocodeService) Search(ctx context.Context, query, lang string, limit int) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit %d", domain.ErrInvalidQuery, limit)
	}
	lang = s.pickLang(lang)
	key := fmt.Sprintf("geocode:search:%s:%d:%s", lang, limit, strings.ToLower(query))

	var out []domain.Place
	if s.getCached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.geo.Search(ctx, query, lang, limit)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, key, out)
	return out, nil
}

func (s *GeocodeService) pickLang(lang string) string {
	if lang == "" {
		return s.lang
	}
	return lang
}

func (s *GeocodeService) getCached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	ok, err := s.cache.Get(cctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	return ok
}

func (s *GeocodeService) setCached(ctx context.Context, key string, v any) {
	if s.cache == nil || s.cacheTTL < time.Second {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := s.cache.Set(cctx, key, v, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
