package domain

import (
	"errors"
	"fmt"
)

// Client input.
var (
	ErrMalformedBody   = errors.New("malformed request body")
	ErrInvalidLocation = errors.New("invalid location data")
	ErrDateRequired    = errors.New("date is required")
	ErrInvalidQuery    = errors.New("invalid query")
)

// Upstream failures. Everything below wraps ErrUpstreamUnavailable so handlers
// only need one errors.Is check to answer 503.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamTimeout     = fmt.Errorf("%w: timed out", ErrUpstreamUnavailable)
	ErrUpstreamStatus      = fmt.Errorf("%w: bad status", ErrUpstreamUnavailable)
	ErrMalformedPayload    = fmt.Errorf("%w: malformed payload", ErrUpstreamUnavailable)
)

var ErrNotFound = errors.New("not found")
