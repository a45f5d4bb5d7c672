package domain

// Place is a geocoded point with a display-ready address.
type Place struct {
	DisplayName string            `json:"display_name"`
	Address     string            `json:"address"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Components  map[string]string `json:"components,omitempty"`
}
