package agent

// HeaderField is one (name, value) pair. Order is preserved on the wire.
type HeaderField [2]string

// Name returns the header name.
func (h HeaderField) Name() string { return h[0] }

// Value returns the header value.
func (h HeaderField) Value() string { return h[1] }

// RequestEnvelope is the HTTP-shaped request handed to the backend's
// http_request / http_request_update interface. Envelopes are constructed
// fresh per call and never reused.
type RequestEnvelope struct {
	Method  string        `json:"method"`
	URL     string        `json:"url"`
	Headers []HeaderField `json:"headers"`
	Body    []byte        `json:"body"`
}

// Header returns the first value of the named header, or "".
func (r RequestEnvelope) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if h.Name() == name {
			return h.Value(), true
		}
	}
	return "", false
}

// ResponseEnvelope is the backend's HTTP-shaped reply. It is immutable
// once received.
type ResponseEnvelope struct {
	StatusCode uint16        `json:"status_code"`
	Headers    []HeaderField `json:"headers"`
	Body       []byte        `json:"body"`
}
