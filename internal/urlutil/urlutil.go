// Package urlutil joins application routes onto the base URL under test.
package urlutil

import (
	"net/url"
	"strings"
)

// NormalizeBase trims whitespace and trailing slashes from a base URL.
func NormalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}

// BuildAbsolute builds an absolute URL from a base origin and a path.
// Absolute paths are returned unchanged.
func BuildAbsolute(base, path string) string {
	base = NormalizeBase(base)
	if path == "" {
		return base
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

// PathOf returns the path component of location, or location itself when it
// does not parse.
func PathOf(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	return u.Path
}

// ValidBase reports whether base is an http(s) URL with a host.
func ValidBase(base string) bool {
	u, err := url.Parse(NormalizeBase(base))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
