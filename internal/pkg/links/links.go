// Package links builds the URLs embedded in transactional emails.
package links

import (
	"net/url"
	"strings"
)

// Action returns base+path with the token and redirectUrl query parameters
// that the verify and confirm-deletion endpoints expect.
func Action(base, path, token, redirect string) string {
	q := url.Values{}
	q.Set("token", token)
	if redirect != "" {
		q.Set("redirectUrl", redirect)
	}
	return strings.TrimRight(base, "/") + path + "?" + q.Encode()
}

// FrontendPath joins a frontend base URL with path segments, escaping each segment.
func FrontendPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
