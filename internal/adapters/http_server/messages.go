package httpserver

import (
	"net/http"
	"strings"
)

const (
	msgInvalidBody        = "Invalid request body"
	msgInvalidLocation    = "Invalid location data"
	msgDateRequired       = "Date is required"
	msgInternal           = "Internal server error"
	msgTooManyRequests    = "Too many requests"
	msgTimeout            = "Request timed out"
	msgInvalidCoordinates = "Invalid coordinates"
	msgQueryRequired      = "Query is required"
	msgInvalidLimit       = "Invalid limit"
)

// keys into localized
const (
	msgAgentUnavailable = "agent_unavailable"
	msgLookupFailed     = "lookup_failed"
	msgPlaceNotFound    = "place_not_found"
)

var localized = map[string]map[string]string{
	msgAgentUnavailable: {
		"ja": "AIエージェントサービスに接続できませんでした。しばらく時間をおいてから再度お試しください。",
		"en": "Could not reach the recommendation service. Please try again later.",
	},
	msgLookupFailed: {
		"ja": "住所の取得に失敗しました。",
		"en": "Failed to look up the address.",
	},
	msgPlaceNotFound: {
		"ja": "指定された場所が見つかりませんでした。",
		"en": "The requested place could not be found.",
	},
}

func localize(key string, r *http.Request) string {
	return localized[key][selectLang(r.Header.Get("Accept-Language"))]
}

// selectLang looks only at the first language range. Japanese unless it is English.
func selectLang(al string) string {
	first, _, _ := strings.Cut(al, ",")
	first, _, _ = strings.Cut(first, ";")
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(first)), "en") {
		return "en"
	}
	return "ja"
}
