package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Both lists must be present and be arrays; an empty list is fine. Items are
// not constrained: the answer is relayed as is.
const recommendationsSchema = `{
  "type": "object",
  "required": ["lunch_restaurants", "dinner_restaurants"],
  "properties": {
    "lunch_restaurants":  {"type": "array"},
    "dinner_restaurants": {"type": "array"}
  }
}`

var recommendationsLoader = gojsonschema.NewStringLoader(recommendationsSchema)

type recommendationsWire struct {
	Lunch  []json.RawMessage `json:"lunch_restaurants"`
	Dinner []json.RawMessage `json:"dinner_restaurants"`
}

// DecodeRecommendations checks body against the answer schema and returns it
// with Raw set to body. Items that are not restaurant objects decode as zero
// values.
func DecodeRecommendations(body []byte) (Recommendations, error) {
	result, err := gojsonschema.Validate(recommendationsLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		// not JSON at all
		return Recommendations{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return Recommendations{}, fmt.Errorf("%w: %s", ErrMalformedPayload, strings.Join(errs, "; "))
	}

	var w recommendationsWire
	if err := json.Unmarshal(body, &w); err != nil {
		return Recommendations{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return Recommendations{
		Lunch:  restaurants(w.Lunch),
		Dinner: restaurants(w.Dinner),
		Raw:    json.RawMessage(body),
	}, nil
}

func restaurants(items []json.RawMessage) []Restaurant {
	out := make([]Restaurant, len(items))
	for i, it := range items {
		_ = json.Unmarshal(it, &out[i])
	}
	return out
}
