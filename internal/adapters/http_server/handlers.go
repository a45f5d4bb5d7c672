package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/euryopa/search-restaurant-agent/internal/app"
	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

// 1 MiB is far more than a location request needs.
const maxBodyBytes = 1 << 20

type Recommender interface {
	Recommend(ctx context.Context, q domain.RecommendQuery) (domain.Recommendations, error)
}

type Geocoding interface {
	Reverse(ctx context.Context, c domain.Coordinates, lang string) (domain.Place, error)
	Search(ctx context.Context, query, lang string, limit int) ([]domain.Place, error)
}

type HealthReporter interface {
	Snapshot() (domain.HealthStatus, error)
}

// Handlers groups the API endpoints. Geocode may be nil, in which case the
// geocoding routes are not mounted.
type Handlers struct {
	Recommend Recommender
	Geocode   Geocoding
	Health    HealthReporter
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Get("/api/health", h.health)
	s.mux.Post("/api/restaurants", h.restaurants)
	if h.Geocode != nil {
		s.mux.Get("/api/geocode/reverse", h.reverseGeocode)
		s.mux.Get("/api/geocode/search", h.searchGeocode)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (h *Handlers) restaurants(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	q, err := app.DecodeLocationRequest(r.Body)
	switch {
	case errors.Is(err, domain.ErrMalformedBody):
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	case errors.Is(err, domain.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, msgInvalidLocation)
		return
	case errors.Is(err, domain.ErrDateRequired):
		writeError(w, http.StatusBadRequest, msgDateRequired)
		return
	case err != nil:
		log.Error().Err(err).Msg("decode restaurants request")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	reqID := chimw.GetReqID(r.Context())
	log.Info().
		Str("request_id", reqID).
		Float64("lat", q.Latitude).
		Float64("lon", q.Longitude).
		Str("date", q.Date).
		Msg("calling recommendation agent")

	rec, err := h.Recommend.Recommend(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Str("request_id", reqID).Msg("recommendation failed")
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			writeError(w, http.StatusServiceUnavailable, localize(msgAgentUnavailable, r))
			return
		}
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	log.Info().
		Str("request_id", reqID).
		Int("lunch", len(rec.Lunch)).
		Int("dinner", len(rec.Dinner)).
		Msg("recommendation ok")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rec.Raw); err != nil {
		log.Error().Err(err).Msg("failed to write recommendations body")
	}
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	st, err := h.Health.Snapshot()
	if err != nil {
		log.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":    "error",
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			"error":     "Health check failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) reverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	pt := domain.Coordinates{Latitude: lat, Longitude: lon}
	if errLat != nil || errLon != nil || !pt.Valid() {
		writeError(w, http.StatusBadRequest, msgInvalidCoordinates)
		return
	}

	p, err := h.Geocode.Reverse(r.Context(), pt, r.URL.Query().Get("lang"))
	if err != nil {
		h.geocodeFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) searchGeocode(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return
	}
	limit := app.DefaultSearchLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l < 1 || l > app.MaxSearchLimit {
			writeError(w, http.StatusBadRequest, msgInvalidLimit)
			return
		}
		limit = l
	}

	places, err := h.Geocode.Search(r.Context(), query, r.URL.Query().Get("lang"), limit)
	if err != nil {
		h.geocodeFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Results []domain.Place `json:"results"`
	}{places})
}

func (h *Handlers) geocodeFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, localize(msgPlaceNotFound, r))
	case errors.Is(err, domain.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, msgInvalidCoordinates)
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, msgQueryRequired)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("geocode failed")
		writeError(w, http.StatusServiceUnavailable, localize(msgLookupFailed, r))
	default:
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("geocode failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
