package ws

import "errors"

// HandshakeError wraps a failure of the HTTP upgrade handshake, on either
// the client or server side. No WebSocket handle is ever produced when one
// of these is returned.
type HandshakeError struct {
	err error
}

func (e *HandshakeError) Error() string { return "ws: handshake failed: " + e.err.Error() }
func (e *HandshakeError) Unwrap() error { return e.err }

func newHandshakeError(err error) *HandshakeError {
	return &HandshakeError{err: err}
}

// Sentinel causes wrapped by HandshakeError.
var (
	ErrBadURLScheme         = errors.New("ws: url scheme must be ws or wss")
	ErrBadURLFragment       = errors.New("ws: url must not contain a fragment")
	ErrBadUpgradeHeader     = errors.New(`ws: missing or invalid "Upgrade: websocket" header`)
	ErrBadConnectionHeader  = errors.New(`ws: missing "Connection: Upgrade" header`)
	ErrBadSecKey            = errors.New("ws: missing or malformed Sec-WebSocket-Key")
	ErrBadSecVersion        = errors.New("ws: unsupported Sec-WebSocket-Version")
	ErrBadSecAccept         = errors.New("ws: Sec-WebSocket-Accept does not match Sec-WebSocket-Key")
	ErrUnsupportedProtocol  = errors.New("ws: server does not support requested subprotocol")
	ErrUnexpectedStatus     = errors.New("ws: server did not return 101 Switching Protocols")
	ErrNotHijacker          = errors.New("ws: response writer does not support hijacking")
	ErrBadHTTPRequestMethod = errors.New("ws: method must be GET")
	ErrBadHTTPRequestProto  = errors.New("ws: protocol version must be at least HTTP/1.1")
)
