package model

import "strings"

// Method is the HTTP method a peer asks the bridge to use
type Method string

const (
	// MethodGet issues a body-less GET
	MethodGet Method = "GET"
	// MethodPost issues a POST carrying the request options as body
	MethodPost Method = "POST"
)

// ParseMethod normalizes a method name. The second result is false for
// methods the bridge does not forward.
//
// Matching is case-insensitive, and methods such as DELETE are rejected
// instead of being downgraded to a body-less GET.
func ParseMethod(name string) (Method, bool) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(name))); m {
	case MethodGet, MethodPost:
		return m, true
	default:
		return "", false
	}
}

// BridgeRequest is a decoded inbound message
type BridgeRequest struct {
	// Path is appended to the local base URL and always starts with "/"
	Path string
	// Method is the HTTP method to use
	Method Method
	// Options is the opaque POST body (ignored for GET)
	Options []byte
	// ContentType is set when the options carry their own framing (JSON objects)
	ContentType string
}

// HasBody reports whether the request is sent with a body
func (r *BridgeRequest) HasBody() bool {
	return r.Method == MethodPost
}

// BridgeResponse is what the local endpoint returned for a BridgeRequest
type BridgeResponse struct {
	// StatusCode is the HTTP status, informational only
	StatusCode int
	// Body is relayed to the peer verbatim
	Body []byte
}
