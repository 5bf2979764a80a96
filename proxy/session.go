package proxy

import (
	"net"
	"net/http"

	"github.com/netinterceptor/blockfilter/rules"
)

// Session contains the data needed to make the interception decision for a
// single proxied request.
type Session struct {
	// ID is the identifier of the proxy session.
	ID string

	// Request is the request data the patterns are matched against.
	Request *rules.Request

	// HTTPRequest is the intercepted HTTP request.
	HTTPRequest *http.Request
}

// NewSession returns a new *Session for the request req of the proxy session
// with the given id.
func NewSession(id string, req *http.Request) (s *Session) {
	return &Session{
		ID:          id,
		Request:     rules.NewRequest(req.URL.String(), requestHostname(req), req.Method),
		HTTPRequest: req,
	}
}

// requestHostname returns the hostname of req without the port.  It returns an
// empty string if the hostname is unknown.
func requestHostname(req *http.Request) (host string) {
	host = req.URL.Hostname()
	if host != "" {
		return host
	}

	host, _, err := net.SplitHostPort(req.Host)
	if err != nil {
		// Assume there is no port.
		return req.Host
	}

	return host
}
