package rules

import (
	"strings"

	"github.com/netinterceptor/blockfilter/internal/ufnet"
	"golang.org/x/net/publicsuffix"
)

// Request represents an intercepted HTTP request with all properties that the
// patterns are matched against.
type Request struct {
	// URL is the full request URL, including the scheme, the host, and the
	// query.  It is never truncated, since exact patterns compare the whole
	// string.
	URL string

	// Hostname is the host of the request without the port.
	Hostname string

	// Domain is the effective top-level domain of the request with an
	// additional label.  It is only used for reporting.
	Domain string

	// Method is the HTTP method of the request.
	Method string
}

// NewRequest creates a new instance of *Request and populates its fields.  If
// hostname is empty, it is extracted from url.
func NewRequest(url, hostname, method string) (r *Request) {
	if hostname == "" {
		hostname = ufnet.ExtractHostname(url)
	}

	r = &Request{
		URL:      url,
		Hostname: hostname,
		Method:   method,
	}

	if domain := effectiveTLDPlusOne(hostname); domain != "" {
		r.Domain = domain
	} else {
		r.Domain = hostname
	}

	return r
}

// effectiveTLDPlusOne is a faster version of publicsuffix.EffectiveTLDPlusOne
// that avoids using fmt.Errorf when the domain is less or equal the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	hostnameLen := len(hostname)
	if hostnameLen < 1 {
		return ""
	}

	if hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}
