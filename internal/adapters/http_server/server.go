package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// Timeout bounds the whole request. Zero means 15s.
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustedProxyHops is how many proxies in front of the server append to
	// X-Forwarded-For. Zero means clients connect directly.
	TrustedProxyHops int
}

type Server struct{ mux *chi.Mux }

func New(opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	m := chi.NewRouter()

	// All middlewares go here (before any routes are added).
	// Recover sits outside Timeout: TimeoutHandler re-panics on the serving goroutine.
	m.Use(ClientIP(opts.TrustedProxyHops))
	m.Use(chimw.RequestID)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	m.Use(Recover)
	m.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	m.Use(Timeout(opts.Timeout))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
