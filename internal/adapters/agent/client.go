// Package agent talks to the upstream restaurant recommendation agent.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/euryopa/search-restaurant-agent/internal/adapters/observability"
	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	endpoint       = "/recommend"
	maxBody        = 4 << 20
)

type Client struct {
	base    string
	hc      *http.Client
	timeout time.Duration
}

func New(base string, timeout time.Duration) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("agent base URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: base,
		// the per-call context carries the deadline; no client-wide timeout
		hc:      &http.Client{},
		timeout: timeout,
	}, nil
}

func (c *Client) Timeout() time.Duration { return c.timeout }

// Recommend posts q to <base>/recommend and returns the validated answer.
// It never retries. Every failure wraps domain.ErrUpstreamUnavailable.
func (c *Client) Recommend(ctx context.Context, q domain.RecommendQuery) (domain.Recommendations, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(q)
	if err != nil {
		return domain.Recommendations{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Recommendations{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "search-restaurant-agent/1.0")
	req.Header.Set("X-Request-ID", requestID(ctx))

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("agent", endpoint, 0, time.Since(start))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			observability.ObserveUpstreamFailure("agent", "timeout")
			return domain.Recommendations{}, fmt.Errorf("%w after %s", domain.ErrUpstreamTimeout, c.timeout)
		}
		observability.ObserveUpstreamFailure("agent", "transport")
		return domain.Recommendations{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	observability.ObserveExternal("agent", endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		// a deadline can also hit while the body is streaming
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			observability.ObserveUpstreamFailure("agent", "timeout")
			return domain.Recommendations{}, fmt.Errorf("%w after %s", domain.ErrUpstreamTimeout, c.timeout)
		}
		observability.ObserveUpstreamFailure("agent", "transport")
		return domain.Recommendations{}, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.ObserveUpstreamFailure("agent", "status")
		return domain.Recommendations{}, fmt.Errorf("%w %d: %s", domain.ErrUpstreamStatus, resp.StatusCode, snippet(body))
	}

	out, err := domain.DecodeRecommendations(body)
	if err != nil {
		observability.ObserveUpstreamFailure("agent", "malformed")
		return domain.Recommendations{}, err
	}
	return out, nil
}

func requestID(ctx context.Context) string {
	if id := chimw.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// snippet trims an error body for log lines.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
