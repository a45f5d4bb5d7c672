package nominatim

import "strings"

// Japanese addresses read from the largest unit down: prefecture, city,
// district, then street and number. Each level lists the OSM keys that may
// carry it, first match wins.
var addressLevels = [][]string{
	{"state", "province", "prefecture"},
	{"city", "county"},
	{"town", "suburb", "city_district", "quarter", "neighbourhood", "village"},
}

// FormatJapaneseAddress joins the address components without separators, the
// way Japanese addresses are written. It returns fallback when nothing matched.
func FormatJapaneseAddress(addr map[string]string, fallback string) string {
	if len(addr) == 0 {
		return fallback
	}
	var b strings.Builder
	for _, keys := range addressLevels {
		b.WriteString(firstNonEmpty(addr, keys...))
	}
	if road := addr["road"]; road != "" {
		b.WriteString(road)
		b.WriteString(addr["house_number"])
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}
