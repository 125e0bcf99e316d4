package cache

import (
	"net/url"
	"strings"
)

// Key identifies one cached response by its normalized request
// signature.
type Key struct {
	// Method is the HTTP method (normalized to upper case).
	Method string

	// URL is the full request URL.
	URL *url.URL
}

// String generates a deterministic cache key string.
// Format: METHOD scheme://host/path?sorted-query
//
// Query parameters are sorted so that equivalent requests with a
// different parameter order map to the same key.
func (k Key) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = "GET"
	}

	u := *k.URL
	// url.Values.Encode sorts by parameter name.
	u.RawQuery = k.URL.Query().Encode()
	u.Fragment = ""

	return method + " " + u.String()
}
