package media

import (
	"net/url"
	"strings"
)

// KeyFromURL returns the storage key of a media URL: its decoded path without
// the leading slash.
func KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", err
	}

	return strings.TrimPrefix(p, "/"), nil
}
