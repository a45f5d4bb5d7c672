// Package nominatim is a small OpenStreetMap Nominatim client for reverse
// geocoding and place search.
package nominatim

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/euryopa/search-restaurant-agent/internal/adapters/observability"
	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

const DefaultBaseURL = "https://nominatim.openstreetmap.org"

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
	ua   string
}

// New builds a client. The public instance allows one request per second,
// so rps defaults to 1.
func New(base string, rps float64) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 10 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), burst),
		ua:   "search-restaurant-agent/1.0 (+https://github.com/euryopa/search-restaurant-agent)",
	}
}

// wire shape shared by /reverse and /search (format=jsonv2)
type place struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (c *Client) Reverse(ctx context.Context, pt domain.Coordinates, lang string) (domain.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(pt.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(pt.Longitude, 'f', -1, 64))
	q.Set("addressdetails", "1")
	q.Set("accept-language", lang)

	var p place
	if err := c.get(ctx, "/reverse", q, &p); err != nil {
		return domain.Place{}, err
	}
	// Nominatim answers 200 with an error field when nothing is there (sea, poles)
	if p.Error != "" {
		return domain.Place{}, fmt.Errorf("reverse %v: %w: %s", pt, domain.ErrNotFound, p.Error)
	}
	out := toPlace(p)
	if out.Latitude == 0 && out.Longitude == 0 {
		out.Latitude, out.Longitude = pt.Latitude, pt.Longitude
	}
	return out, nil
}

func (c *Client) Search(ctx context.Context, query, lang string, limit int) ([]domain.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("addressdetails", "1")
	q.Set("accept-language", lang)

	var ps []place
	if err := c.get(ctx, "/search", q, &ps); err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("search %q: %w", query, domain.ErrNotFound)
	}
	out := make([]domain.Place, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPlace(p))
	}
	return out, nil
}

func toPlace(p place) domain.Place {
	lat, _ := strconv.ParseFloat(p.Lat, 64)
	lon, _ := strconv.ParseFloat(p.Lon, 64)
	return domain.Place{
		DisplayName: p.DisplayName,
		Address:     FormatJapaneseAddress(p.Address, p.DisplayName),
		Latitude:    lat,
		Longitude:   lon,
		Components:  p.Address,
	}
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
// Every non-404 failure wraps domain.ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base + path + "?" + q.Encode()

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := c.rl.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.ua)

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("nominatim", path, 0, time.Since(start))
			if ctx.Err() != nil {
				observability.ObserveUpstreamFailure("nominatim", "timeout")
				return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctx.Err())
			}
			lastErr = err
			if i < 2 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			observability.ObserveUpstreamFailure("nominatim", "transport")
			return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, lastErr)
		}
		observability.ObserveExternal("nominatim", path, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				observability.ObserveUpstreamFailure("nominatim", "malformed")
				return fmt.Errorf("%w: decode: %v", domain.ErrUpstreamUnavailable, err)
			}
			return nil

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 2 && sleepCtx(ctx, wait) {
				continue
			}
			observability.ObserveUpstreamFailure("nominatim", "status")
			return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, lastErr)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			observability.ObserveUpstreamFailure("nominatim", "status")
			return fmt.Errorf("%w: bad status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempt succeeded")
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, lastErr)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
