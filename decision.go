package blockfilter

import "net/http"

// Action is the action the proxy host must take for a request.
type Action uint8

// Action values.
const (
	// ActionAllow means that the request must be forwarded untouched.
	ActionAllow Action = iota

	// ActionBlock means that the request must not reach the network and the
	// synthetic response of the decision must be returned instead.
	ActionBlock
)

// String implements the [fmt.Stringer] interface for Action.
func (a Action) String() (s string) {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Names of the headers set on synthetic responses.  The marker headers keep
// their exact spelling on the wire, so they are not canonicalized.
const (
	HeaderContentType = "Content-Type"
	HeaderBlocked     = "X-MITM-Blocked"
	HeaderReason      = "X-MITM-Reason"
)

// Content types of synthetic responses.
const (
	ContentTypeJSON  = "application/json"
	ContentTypePlain = "text/plain"
)

// Decision is the interception decision for a single request.  For
// [ActionAllow] all other fields are empty.
type Decision struct {
	// Header contains the headers of the synthetic response.  It is a new map
	// for every decision.
	Header http.Header

	// Reason is the human-readable reason of the block.
	Reason string

	// Body is the body of the synthetic response.  It must not be modified.
	Body []byte

	// StatusCode is the status code of the synthetic response.
	StatusCode int

	// Action is the action to take.
	Action Action
}

// Blocked returns true if the request must be blocked.
func (d Decision) Blocked() (ok bool) {
	return d.Action == ActionBlock
}

// newBlockDecision returns a block decision with a synthetic response shaped
// by s.
func newBlockDecision(s *Settings, reason string) (d Decision) {
	status := s.StatusCode
	if status == 0 {
		status = DefaultStatusCode
	}

	// A non-empty body is assumed to be JSON.
	contentType := ContentTypePlain
	if len(s.Body) > 0 {
		contentType = ContentTypeJSON
	}

	h := http.Header{}
	h.Set(HeaderContentType, contentType)
	h[HeaderBlocked] = []string{"true"}
	h[HeaderReason] = []string{reason}

	body := s.Body
	if body == nil {
		body = []byte{}
	}

	return Decision{
		Header:     h,
		Reason:     reason,
		Body:       body,
		StatusCode: status,
		Action:     ActionBlock,
	}
}
