package proxy

import (
	"net/http"

	"github.com/AdguardTeam/gomitmproxy"
)

// onRequest handles the outgoing HTTP requests.  Blocked requests are answered
// with the synthetic response and never reach the upstream.
func (s *Server) onRequest(sess *gomitmproxy.Session) (req *http.Request, res *http.Response) {
	r := sess.Request()
	if r.Method == http.MethodConnect {
		// Do nothing for CONNECT requests, the tunneled requests are decided
		// separately.
		return nil, nil
	}

	session := NewSession(sess.ID(), r)

	d := s.engine.Decide(session.Request)
	if !d.Blocked() {
		return r, nil
	}

	s.logger.Debug(
		"request blocked",
		"id", session.ID,
		"url", session.Request.URL,
		"reason", d.Reason,
	)

	return nil, newBlockedResponse(session, d)
}
