package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

// wire form of domain.LocationRequest; fields stay raw so a wrong type on
// one field maps to that field's error instead of a generic decode failure
type locationRequestWire struct {
	Location json.RawMessage `json:"location"`
	Date     json.RawMessage `json:"date"`
}

type coordinatesWire struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// DecodeLocationRequest reads a /api/restaurants body and returns the query to
// send upstream. Location is checked before date.
func DecodeLocationRequest(r io.Reader) (domain.RecommendQuery, error) {
	dec := json.NewDecoder(r)
	var w locationRequestWire
	if err := dec.Decode(&w); err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: %v", domain.ErrMalformedBody, err)
	}
	// exactly one JSON value; anything after it besides whitespace is rejected
	if _, err := dec.Token(); err != io.EOF {
		return domain.RecommendQuery{}, fmt.Errorf("%w: trailing data after body", domain.ErrMalformedBody)
	}

	c, err := decodeCoordinates(w.Location)
	if err != nil {
		return domain.RecommendQuery{}, err
	}

	if isNull(w.Date) {
		return domain.RecommendQuery{}, domain.ErrDateRequired
	}
	var date string
	if err := json.Unmarshal(w.Date, &date); err != nil {
		return domain.RecommendQuery{}, fmt.Errorf("%w: date must be a string", domain.ErrMalformedBody)
	}
	if strings.TrimSpace(date) == "" {
		return domain.RecommendQuery{}, domain.ErrDateRequired
	}

	return domain.LocationRequest{Location: &c, Date: date}.Query(), nil
}

func decodeCoordinates(raw json.RawMessage) (domain.Coordinates, error) {
	if isNull(raw) {
		return domain.Coordinates{}, domain.ErrInvalidLocation
	}
	var cw coordinatesWire
	if err := json.Unmarshal(raw, &cw); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: %v", domain.ErrInvalidLocation, err)
	}
	if cw.Latitude == nil || cw.Longitude == nil {
		return domain.Coordinates{}, domain.ErrInvalidLocation
	}
	c := domain.Coordinates{Latitude: *cw.Latitude, Longitude: *cw.Longitude}
	if !c.Valid() {
		return domain.Coordinates{}, fmt.Errorf("%w: out of range", domain.ErrInvalidLocation)
	}
	return c, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
