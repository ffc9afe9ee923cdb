package gamehub

import (
	"errors"
	"fmt"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrNotConnected is returned when sending on a connection that is not
	// in the connected state.
	ErrNotConnected = errors.New("hub connection is not connected")

	// ErrConnectionClosed fails invocations still pending when the
	// underlying connection goes away.
	ErrConnectionClosed = errors.New("invocation canceled due to the underlying connection being closed")

	// ErrHandshake wraps a rejected or malformed protocol handshake.
	ErrHandshake = errors.New("hub handshake failed")

	errStopped = errors.New("hub connection stopped")
)

// HubError is a rejection returned by the hub in a completion message.
type HubError struct {
	Method  string
	Message string
}

func (e *HubError) Error() string {
	return e.Message
}

// NegotiateError is returned when the negotiate endpoint answers with a
// non-2xx status, most commonly 401 for a bad or expired token.
type NegotiateError struct {
	StatusCode int
	Body       string
}

func (e *NegotiateError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("negotiate: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("negotiate: HTTP %d: %s", e.StatusCode, e.Body)
}

// ============================================================================
// Negotiate Types
// ============================================================================

// NegotiateResponse is the body returned by POST {hub}/negotiate.
type NegotiateResponse struct {
	ConnectionID        string               `json:"connectionId"`
	ConnectionToken     string               `json:"connectionToken,omitempty"`
	NegotiateVersion    int                  `json:"negotiateVersion"`
	AvailableTransports []AvailableTransport `json:"availableTransports"`
	URL                 string               `json:"url,omitempty"`
	AccessToken         string               `json:"accessToken,omitempty"`
	Error               string               `json:"error,omitempty"`
}

type AvailableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

// SupportsWebSockets reports whether the hub offers the WebSockets
// transport with text framing. An empty transport list is taken as yes.
func (r *NegotiateResponse) SupportsWebSockets() bool {
	if len(r.AvailableTransports) == 0 {
		return true
	}
	for _, t := range r.AvailableTransports {
		if t.Transport != "WebSockets" {
			continue
		}
		for _, f := range t.TransferFormats {
			if f == "Text" {
				return true
			}
		}
	}
	return false
}

// connectionTokenOrID returns the identifier to send as the id query
// parameter: the token for negotiate version 1, the id for version 0.
func (r *NegotiateResponse) connectionTokenOrID() string {
	if r.NegotiateVersion >= 1 && r.ConnectionToken != "" {
		return r.ConnectionToken
	}
	return r.ConnectionID
}
