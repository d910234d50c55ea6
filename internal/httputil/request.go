package httputil

import (
	"net/http"
	"strconv"
)

// FormValue parses the form-encoded body once and returns the named field.
// Telephony webhooks deliver every event as application/x-www-form-urlencoded.
func FormValue(r *http.Request, key string) string {
	// ParseForm is idempotent; the error only matters for malformed bodies,
	// which surface as empty fields and flow into the fallback paths.
	_ = r.ParseForm()
	return r.PostFormValue(key)
}

// FormFloat returns the named field parsed as a float, or def when the field
// is absent or malformed.
func FormFloat(r *http.Request, key string, def float64) float64 {
	raw := FormValue(r, key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}
