// Package identity resolves the best-effort client address of a request.
package identity

import (
	"net/http"
	"strings"
)

// Unknown is returned when no forwarding header carries an address
const Unknown = "unknown"

// headers in precedence order
var headers = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Cluster-Client-IP",
}

// ClientIP returns the first non-empty address found in the forwarding headers.
// For X-Forwarded-For only the first comma-separated entry is used. The value is
// not validated as an IP address.
func ClientIP(h http.Header) string {
	for _, name := range headers {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			first, _, _ := strings.Cut(v, ",")
			v = strings.TrimSpace(first)
			if v == "" {
				continue
			}
		}
		return v
	}
	return Unknown
}

// FromRequest is ClientIP over the request headers
func FromRequest(r *http.Request) string {
	return ClientIP(r.Header)
}
