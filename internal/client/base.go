package client

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var prefixRE = regexp.MustCompile(`^(/[^/]+/[^/]+)`)

// ResolveBase derives the API base URL from the URL a page is served at.
// Consoles deployed under /<env>/<app>/ talk to /<env>/<app>/api; anything
// shallower talks to /api on the same origin.
func ResolveBase(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("page url %q must be absolute", pageURL)
	}
	prefix := ""
	if m := prefixRE.FindStringSubmatch(u.EscapedPath()); m != nil {
		prefix = m[1]
	}
	return u.Scheme + "://" + u.Host + prefix + "/api", nil
}

// WebSocketURL builds the ws:// or wss:// URL for path under base.
func WebSocketURL(base, path string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parsing websocket url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// segments joins path segments, escaping each one.
func segments(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}
