package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"

	redisad "github.com/euryopa/search-restaurant-agent/internal/adapters/redis"
	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

// ---- fakes ----

type fakeAgent struct {
	calls atomic.Int64
	raw   string
	err   error

	// when set, Recommend signals entered and blocks until release is closed
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	ctxErr  error
}

func (f *fakeAgent) Recommend(ctx context.Context, q domain.RecommendQuery) (domain.Recommendations, error) {
	f.calls.Add(1)
	if f.release != nil {
		f.once.Do(func() { close(f.entered) })
		<-f.release
		f.ctxErr = ctx.Err()
	}
	if f.err != nil {
		return domain.Recommendations{}, f.err
	}
	raw := f.raw
	if raw == "" {
		raw = `{"lunch_restaurants":[{"link":"https://example.com/a","reason":"close"}],"dinner_restaurants":[]}`
	}
	return domain.Recommendations{
		Lunch: []domain.Restaurant{{Link: "https://example.com/a", Reason: "close"}},
		Raw:   []byte(raw),
	}, nil
}

type fakeGeocoder struct {
	reverseCalls, searchCalls int
	lastLang                  string
	lastLimit                 int
	place                     domain.Place
	places                    []domain.Place
	err                       error
}

func (f *fakeGeocoder) Reverse(ctx context.Context, c domain.Coordinates, lang string) (domain.Place, error) {
	f.reverseCalls++
	f.lastLang = lang
	if f.err != nil {
		return domain.Place{}, f.err
	}
	return f.place, nil
}

func (f *fakeGeocoder) Search(ctx context.Context, q, lang string, limit int) ([]domain.Place, error) {
	f.searchCalls++
	f.lastLang, f.lastLimit = lang, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.places, nil
}

func newRedisCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}
