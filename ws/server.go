package ws

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
)

// Handshake carries the negotiated values resulting from a successful
// upgrade, either as client or server.
type Handshake struct {
	// Protocol is the subprotocol both sides agreed on, or "" if none
	// was requested or none matched.
	Protocol string
}

// Upgrader holds options for upgrading an http.Request to a raw WebSocket
// byte stream, server-side.
type Upgrader struct {
	// Protocols, if non-nil, is the list of subprotocols this server
	// supports, most preferred first. The first protocol requested by
	// the client that also appears here is selected.
	Protocols []string
}

// DefaultUpgrader is the zero-value Upgrader used by Upgrade.
var DefaultUpgrader Upgrader

// Upgrade is a shorthand for DefaultUpgrader.Upgrade.
func Upgrade(w http.ResponseWriter, r *http.Request) (net.Conn, *bufio.ReadWriter, Handshake, error) {
	return DefaultUpgrader.Upgrade(w, r)
}

// Upgrade performs the server side of the RFC 6455 opening handshake
// against r. On success it hijacks the underlying net.Conn from w and
// writes the 101 response onto it, returning the raw connection and its
// buffered reader/writer for the caller to build a WebSocket session on
// top of. When it rejects the request it writes the error response to w
// itself (400 for a bad request, 500 when w cannot be hijacked) and returns
// a non-nil *HandshakeError; no net.Conn is hijacked in that case.
func (u Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (conn net.Conn, rw *bufio.ReadWriter, hs Handshake, err error) {
	// See https://tools.ietf.org/html/rfc6455#section-4.1: method MUST be
	// GET and HTTP version MUST be at least 1.1.
	if r.Method != http.MethodGet {
		return u.fail(w, http.StatusBadRequest, nil, ErrBadHTTPRequestMethod)
	}
	if r.ProtoMajor < 1 || (r.ProtoMajor == 1 && r.ProtoMinor < 1) {
		return u.fail(w, http.StatusBadRequest, nil, ErrBadHTTPRequestProto)
	}
	if err := CheckUpgrade(r.Header); err != nil {
		return u.fail(w, http.StatusBadRequest, nil, err)
	}

	key := r.Header.Get(HeaderSecKey)
	if !validNonce(key) {
		return u.fail(w, http.StatusBadRequest, nil, ErrBadSecKey)
	}

	if v := r.Header.Get(HeaderSecVersion); v != ProtocolVersion {
		return u.fail(w, http.StatusBadRequest, http.Header{HeaderSecVersion: {ProtocolVersion}}, ErrBadSecVersion)
	}

	if raw := r.Header.Get(HeaderSecProto); raw != "" {
		offered := SplitProtocols(raw)
		proto, ok := SelectProtocol(offered, u.Protocols)
		if !ok {
			return u.fail(w, http.StatusBadRequest, http.Header{HeaderSecProto: {raw}}, ErrUnsupportedProtocol)
		}
		hs.Protocol = proto
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return u.fail(w, http.StatusInternalServerError, nil, ErrNotHijacker)
	}
	conn, rw, err = hj.Hijack()
	if err != nil {
		return nil, nil, Handshake{}, newHandshakeError(err)
	}

	header := http.Header{
		HeaderUpgrade:    {"websocket"},
		HeaderConnection: {"Upgrade"},
		HeaderSecAccept:  {ComputeAcceptKey(key)},
	}
	if hs.Protocol != "" {
		header.Set(HeaderSecProto, hs.Protocol)
	}
	if err = writeResponseLine(rw.Writer, http.StatusSwitchingProtocols, header); err != nil {
		conn.Close()
		return nil, nil, Handshake{}, newHandshakeError(err)
	}
	if err = rw.Writer.Flush(); err != nil {
		conn.Close()
		return nil, nil, Handshake{}, newHandshakeError(err)
	}

	return conn, rw, hs, nil
}

func (u Upgrader) fail(w http.ResponseWriter, code int, extra http.Header, cause error) (net.Conn, *bufio.ReadWriter, Handshake, error) {
	for k, v := range extra {
		w.Header()[k] = v
	}
	http.Error(w, cause.Error(), code)
	return nil, nil, Handshake{}, newHandshakeError(cause)
}

var statusText = map[int]string{
	http.StatusSwitchingProtocols: "Switching Protocols",
}

func writeResponseLine(w *bufio.Writer, code int, header http.Header) error {
	text := statusText[code]
	if text == "" {
		text = http.StatusText(code)
	}
	if _, err := w.WriteString("HTTP/1.1 " + strconv.Itoa(code) + " " + text + "\r\n"); err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			if _, err := w.WriteString(k + ": " + v + "\r\n"); err != nil {
				return err
			}
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}
