package domain

import "context"

type RecommendationAgent interface {
	Recommend(ctx context.Context, q RecommendQuery) (Recommendations, error)
}

type Geocoder interface {
	Reverse(ctx context.Context, c Coordinates, lang string) (Place, error)
	Search(ctx context.Context, query, lang string, limit int) ([]Place, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
