package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euryopa/search-restaurant-agent/internal/adapters/agent"
	httpserver "github.com/euryopa/search-restaurant-agent/internal/adapters/http_server"
	"github.com/euryopa/search-restaurant-agent/internal/app"
	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

// ---- fakes ----

type fakeRecommender struct {
	calls atomic.Int64
	rec   domain.Recommendations
	err   error
	panic bool
	block bool
}

func (f *fakeRecommender) Recommend(ctx context.Context, q domain.RecommendQuery) (domain.Recommendations, error) {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return domain.Recommendations{}, ctx.Err()
	}
	return f.rec, f.err
}

type fakeGeo struct {
	place  domain.Place
	places []domain.Place
	err    error
	limit  int
}

func (f *fakeGeo) Reverse(ctx context.Context, c domain.Coordinates, lang string) (domain.Place, error) {
	return f.place, f.err
}

func (f *fakeGeo) Search(ctx context.Context, q, lang string, limit int) ([]domain.Place, error) {
	f.limit = limit
	return f.places, f.err
}

type fakeHealth struct{ err error }

func (f fakeHealth) Snapshot() (domain.HealthStatus, error) {
	if f.err != nil {
		return domain.HealthStatus{}, f.err
	}
	return domain.HealthStatus{Status: "ok", Timestamp: "2025-06-01T03:00:00.000Z", Environment: "test", Version: "1.0.0"}, nil
}

const validBody = `{"location":{"latitude":35.6812,"longitude":139.7671},"date":"2025-06-01T12:00:00+09:00"}`

const upstreamPayload = `{"lunch_restaurants": [{"link": "https://example.com/l", "reason": "近い"}],
  "dinner_restaurants": []}`

func newRouter(h *httpserver.Handlers, opts httpserver.Options) http.Handler {
	if h.Health == nil {
		h.Health = fakeHealth{}
	}
	srv := httpserver.New(opts)
	srv.MountHandlers(h)
	return srv.Mux()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postRestaurants(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/restaurants", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var b struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b), rr.Body.String())
	return b.Error
}

// ---- /api/restaurants ----

func TestRestaurants_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no location", `{"date":"2025-06-01"}`, "Invalid location data"},
		{"location not an object", `{"location":[1,2],"date":"2025-06-01"}`, "Invalid location data"},
		{"no date", `{"location":{"latitude":35.6,"longitude":139.7}}`, "Date is required"},
		{"empty date", `{"location":{"latitude":35.6,"longitude":139.7},"date":""}`, "Date is required"},
		{"broken json", `{"location":{`, "Invalid request body"},
		{"trailing garbage", validBody + ` garbage!!`, "Invalid request body"},
		{"numeric date", `{"location":{"latitude":35.6,"longitude":139.7},"date":20250601}`, "Invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecommender{}
			rr := do(t, newRouter(&httpserver.Handlers{Recommend: rec}, httpserver.Options{}), postRestaurants(tc.body))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.want, errorOf(t, rr))
			assert.Zero(t, rec.calls.Load())
		})
	}
}

func TestRestaurants_BodyTooLarge(t *testing.T) {
	big := `{"location":{"latitude":35.6,"longitude":139.7},"date":"` + strings.Repeat("x", 2<<20) + `"}`
	rr := do(t, newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}}, httpserver.Options{}), postRestaurants(big))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rr))
}

func TestRestaurants_RelaysUpstreamBytes(t *testing.T) {
	rec := &fakeRecommender{rec: domain.Recommendations{Raw: []byte(upstreamPayload)}}
	rr := do(t, newRouter(&httpserver.Handlers{Recommend: rec}, httpserver.Options{}), postRestaurants(validBody))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, upstreamPayload, rr.Body.String())
}

func TestRestaurants_UpstreamUnavailableIsLocalized(t *testing.T) {
	rec := &fakeRecommender{err: domain.ErrUpstreamTimeout}
	h := newRouter(&httpserver.Handlers{Recommend: rec}, httpserver.Options{})

	rr := do(t, h, postRestaurants(validBody))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, errorOf(t, rr), "AIエージェントサービスに接続できませんでした")

	req := postRestaurants(validBody)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")
	rr = do(t, h, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Could not reach the recommendation service. Please try again later.", errorOf(t, rr))
}

func TestRestaurants_UnexpectedErrorIs500(t *testing.T) {
	rec := &fakeRecommender{err: errors.New("something odd")}
	rr := do(t, newRouter(&httpserver.Handlers{Recommend: rec}, httpserver.Options{}), postRestaurants(validBody))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", errorOf(t, rr))
}

func TestRestaurants_PanicIs500(t *testing.T) {
	rec := &fakeRecommender{panic: true}
	rr := do(t, newRouter(&httpserver.Handlers{Recommend: rec}, httpserver.Options{}), postRestaurants(validBody))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", errorOf(t, rr))
}

func TestRestaurants_ServerTimeout(t *testing.T) {
	rec := &fakeRecommender{block: true}
	rr := do(t, newRouter(&httpserver.Handlers{Recommend: rec}, httpserver.Options{Timeout: 50 * time.Millisecond}), postRestaurants(validBody))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Request timed out", errorOf(t, rr))
}

// The real agent client behind the handler, against a fake upstream.
func TestRestaurants_WithAgentClient(t *testing.T) {
	cases := []struct {
		name     string
		upstream http.HandlerFunc
		status   int
	}{
		{"success", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(upstreamPayload))
		}, http.StatusOK},
		{"missing dinner list", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"lunch_restaurants":[]}`))
		}, http.StatusServiceUnavailable},
		{"upstream 500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, http.StatusServiceUnavailable},
		{"upstream too slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int64
			up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tc.upstream(w, r)
			}))
			defer up.Close()

			cl, err := agent.New(up.URL, 100*time.Millisecond)
			require.NoError(t, err)
			svc := app.NewRecommendationService(cl, nil, 0)
			rr := do(t, newRouter(&httpserver.Handlers{Recommend: svc}, httpserver.Options{}), postRestaurants(validBody))

			assert.Equal(t, tc.status, rr.Code)
			assert.EqualValues(t, 1, hits.Load(), "agent is called exactly once")
			if tc.status == http.StatusOK {
				assert.Equal(t, upstreamPayload, rr.Body.String())
			}
		})
	}
}

// ---- health ----

func TestHealth(t *testing.T) {
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}}, httpserver.Options{})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var st domain.HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestHealth_Failure(t *testing.T) {
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}, Health: fakeHealth{err: errors.New("x")}}, httpserver.Options{})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Health check failed", body["error"])
	assert.NotEmpty(t, body["timestamp"])
}

// ---- geocode ----

func TestGeocodeReverse(t *testing.T) {
	geo := &fakeGeo{place: domain.Place{DisplayName: "丸の内", Address: "東京都千代田区丸の内", Latitude: 35.68, Longitude: 139.76}}
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}, Geocode: geo}, httpserver.Options{})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/reverse?lat=35.68&lon=139.76", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var p domain.Place
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "東京都千代田区丸の内", p.Address)

	for _, q := range []string{"lat=abc&lon=1", "lat=1", "lat=95&lon=0"} {
		rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/reverse?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		assert.Equal(t, "Invalid coordinates", errorOf(t, rr))
	}
}

func TestGeocodeReverse_Failures(t *testing.T) {
	geo := &fakeGeo{err: domain.ErrNotFound}
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}, Geocode: geo}, httpserver.Options{})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/reverse?lat=0&lon=0", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "指定された場所が見つかりませんでした。", errorOf(t, rr))

	geo.err = domain.ErrUpstreamStatus
	req := httptest.NewRequest(http.MethodGet, "/api/geocode/reverse?lat=0&lon=0", nil)
	req.Header.Set("Accept-Language", "en")
	rr = do(t, h, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Failed to look up the address.", errorOf(t, rr))
}

func TestGeocodeSearch(t *testing.T) {
	geo := &fakeGeo{places: []domain.Place{{DisplayName: "東京駅"}}}
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}, Geocode: geo}, httpserver.Options{})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/search?q=tokyo", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, app.DefaultSearchLimit, geo.limit)
	var out struct {
		Results []domain.Place `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Results, 1)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/search?q=+", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Query is required", errorOf(t, rr))

	for _, l := range []string{"0", "11", "five"} {
		rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/search?q=tokyo&limit="+l, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, l)
		assert.Equal(t, "Invalid limit", errorOf(t, rr))
	}
}

func TestGeocodeRoutesAbsentWithoutGeocoder(t *testing.T) {
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}}, httpserver.Options{})
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/geocode/search?q=tokyo", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ---- rate limit ----

func TestRateLimit(t *testing.T) {
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}}, httpserver.Options{RateLimitRPS: 0.001, RateLimitBurst: 2})

	get := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = ip + ":40000"
		return do(t, h, req)
	}

	assert.Equal(t, http.StatusOK, get("192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, get("192.0.2.1").Code)
	rr := get("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "Too many requests", errorOf(t, rr))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, get("192.0.2.2").Code)
}

func TestRateLimit_IgnoresClientForwardedFor(t *testing.T) {
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}}, httpserver.Options{RateLimitRPS: 0.001, RateLimitBurst: 2})

	var codes []int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.1:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		codes = append(codes, do(t, h, req).Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)
}

func TestRateLimit_BehindTrustedProxy(t *testing.T) {
	h := newRouter(&httpserver.Handlers{Recommend: &fakeRecommender{}},
		httpserver.Options{RateLimitRPS: 0.001, RateLimitBurst: 2, TrustedProxyHops: 1})

	get := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.8.0.1:5000" // the load balancer
		req.Header.Set("X-Forwarded-For", xff)
		return do(t, h, req).Code
	}

	// the client rotates the part it controls; the proxy-appended entry stays
	assert.Equal(t, http.StatusOK, get("1.1.1.1, 198.51.100.7"))
	assert.Equal(t, http.StatusOK, get("2.2.2.2, 198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, get("3.3.3.3, 198.51.100.7"))

	assert.Equal(t, http.StatusOK, get("198.51.100.8"))
}
