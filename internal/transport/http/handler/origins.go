package handler

import (
	"net/http"
	"net/url"
	"strings"
)

// Origins knows the public base URL of this API and which origins may be
// used as redirect targets after email links are followed.
type Origins struct {
	publicURL string
	allowed   map[string]struct{}
}

// NewOrigins allows redirects to the origin of each URL in allowed.
// An empty publicURL means links are built from the incoming request.
func NewOrigins(publicURL string, allowed ...string) *Origins {
	o := &Origins{publicURL: strings.TrimRight(publicURL, "/"), allowed: make(map[string]struct{})}
	for _, a := range allowed {
		if origin, ok := originOf(strings.TrimSpace(a)); ok {
			o.allowed[origin] = struct{}{}
		}
	}
	return o
}

// APIBase is the origin emailed links should point at.
func (o *Origins) APIBase(r *http.Request) string {
	if o.publicURL != "" {
		return o.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// Redirect reports whether target may be redirected to.
func (o *Origins) Redirect(target string) (string, bool) {
	if target == "" {
		return "", false
	}
	origin, ok := originOf(target)
	if !ok {
		return "", false
	}
	if _, ok := o.allowed[origin]; !ok {
		return "", false
	}
	return target, true
}

func originOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.Scheme + "://" + strings.ToLower(u.Host), true
}
