package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/alanbriolat/connect-archiver/generic"
)

var (
	ErrNoPathSegment = errors.New("cannot extract path segment")
	ErrInvalidURL    = errors.New("not an absolute http(s) URL")
)

var protocols = generic.NewSet("http", "https")

// ParseHTTPURL parses s and checks that it is an absolute http or https URL with a host.
func ParseHTTPURL(s string) (*url.URL, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !protocols.Contains(strings.ToLower(parsedURL.Scheme)) || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, s)
	}
	return parsedURL, nil
}

// Origin returns "scheme://host[:port]" of u.
func Origin(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}

// LastPathSegment returns the final non-empty element of the URL path, ignoring any query or fragment and any
// trailing slashes.
func LastPathSegment(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrNoPathSegment
	}
	path := strings.Trim(u.Path, "/")
	// Tolerate query strings that ended up in the path, e.g. from unescaped input
	path = strings.SplitN(path, "?", 2)[0]
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ErrNoPathSegment
	}
	pathElements := strings.Split(path, "/")
	segment := pathElements[len(pathElements)-1]
	// Don't allow "segments" that are just ".", "..", etc.
	if strings.ReplaceAll(segment, ".", "") == "" {
		return "", ErrNoPathSegment
	}
	return segment, nil
}
