package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

// Recommender is the slice of RecommendationService the warmer needs.
type Recommender interface {
	Recommend(ctx context.Context, q domain.RecommendQuery) (domain.Recommendations, error)
}

type WarmService struct {
	rec     Recommender
	workers int64
}

type WarmReport struct {
	OK, Failed int
}

func NewWarmService(r Recommender, workers int) *WarmService {
	if workers < 1 {
		workers = 1
	}
	return &WarmService{rec: r, workers: int64(workers)}
}

// WarmAll requests recommendations for every point on date, at most
// workers at a time. A failed point is logged and counted, never fatal.
func (s *WarmService) WarmAll(ctx context.Context, points []domain.Coordinates, date string) (WarmReport, error) {
	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	var ok, failed atomic.Int64

	for _, p := range points {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return WarmReport{OK: int(ok.Load()), Failed: int(failed.Load())}, err
		}

		wg.Add(1)
		go func(p domain.Coordinates) {
			defer wg.Done()
			defer sem.Release(1)

			q := domain.RecommendQuery{Latitude: p.Latitude, Longitude: p.Longitude, Date: date}
			if _, err := s.rec.Recommend(ctx, q); err != nil {
				failed.Add(1)
				log.Warn().Float64("lat", p.Latitude).Float64("lon", p.Longitude).Err(err).Msg("warm failed")
				return
			}
			ok.Add(1)
			log.Info().Float64("lat", p.Latitude).Float64("lon", p.Longitude).Msg("warm ok")
		}(p)
	}

	wg.Wait()
	return WarmReport{OK: int(ok.Load()), Failed: int(failed.Load())}, nil
}

// ParseLocations reads "lat,lon" lines. Blank lines and lines starting with
// '#' are skipped; malformed lines are returned as errors alongside the
// points that did parse.
func ParseLocations(r io.Reader) ([]domain.Coordinates, []error) {
	var (
		out  []domain.Coordinates
		errs []error
	)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, err := parseLocationLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, err)
	}
	return out, errs
}

func parseLocationLine(line string) (domain.Coordinates, error) {
	lat, lon, found := strings.Cut(line, ",")
	if !found {
		return domain.Coordinates{}, fmt.Errorf("%w: want lat,lon", domain.ErrInvalidLocation)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: %v", domain.ErrInvalidLocation, err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: %v", domain.ErrInvalidLocation, err)
	}
	c := domain.Coordinates{Latitude: la, Longitude: lo}
	if !c.Valid() {
		return domain.Coordinates{}, fmt.Errorf("%w: out of range", domain.ErrInvalidLocation)
	}
	return c, nil
}
