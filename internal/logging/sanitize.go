package logging

import (
	"net/url"
	"strings"
)

// SanitizeURL removes userinfo and query params for logging. Catalog requests
// carry absolute filesystem paths in the query string; those stay out of logs.
func SanitizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
