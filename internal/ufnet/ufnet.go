// Package ufnet contains utilities for URL and hostname parsing.
package ufnet

import "strings"

// ExtractHostname quickly retrieves the hostname from the given URL.  The port
// and the userinfo, if any, are not included.
//
// NOTE: ExtractHostname is a best-effort function for URL-like strings.  The
// result is not guaranteed to be correct for non-hierarchical URLs.  Bracketed
// IPv6 hosts are returned without the brackets.
func ExtractHostname(url string) (hostname string) {
	start := strings.Index(url, "//")
	if start == -1 {
		return ""
	}

	rest := url[start+2:]
	if end := strings.IndexAny(rest, "/?#"); end != -1 {
		rest = rest[:end]
	}

	if at := strings.LastIndexByte(rest, '@'); at != -1 {
		rest = rest[at+1:]
	}

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return ""
		}

		return rest[1:end]
	}

	if colon := strings.IndexByte(rest, ':'); colon != -1 {
		rest = rest[:colon]
	}

	return rest
}
