package domain

import "encoding/json"

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies on the globe.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// LocationRequest is the body the browser posts to /api/restaurants.
type LocationRequest struct {
	Location *Coordinates `json:"location"`
	Date     string       `json:"date"` // ISO-8601, passed through untouched
}

// Query assumes Location has been checked.
func (r LocationRequest) Query() RecommendQuery {
	return RecommendQuery{Latitude: r.Location.Latitude, Longitude: r.Location.Longitude, Date: r.Date}
}

// RecommendQuery is what the recommendation agent receives on /recommend.
type RecommendQuery struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Date      string  `json:"date"`
}

type Restaurant struct {
	Link   string `json:"link"`
	Reason string `json:"reason"`
}

// Recommendations is the agent's answer. Raw holds the exact upstream bytes;
// callers relay Raw, the typed lists are for logging and metrics only.
type Recommendations struct {
	Lunch  []Restaurant    `json:"lunch_restaurants"`
	Dinner []Restaurant    `json:"dinner_restaurants"`
	Raw    json.RawMessage `json:"-"`
}
