package proxy

import (
	"bytes"
	"net/http"

	"github.com/AdguardTeam/gomitmproxy/proxyutil"
	"github.com/netinterceptor/blockfilter"
)

// newBlockedResponse creates the synthetic response for a blocked request.
func newBlockedResponse(session *Session, d blockfilter.Decision) (res *http.Response) {
	res = proxyutil.NewResponse(d.StatusCode, bytes.NewReader(d.Body), session.HTTPRequest)
	res.ContentLength = int64(len(d.Body))

	// Assign the values directly to keep the exact spelling of the header
	// names.
	for k, v := range d.Header {
		res.Header[k] = v
	}

	return res
}
