package ws

import (
	"bufio"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/pool/pbufio"
)

// Dialer holds options for the client side of the RFC 6455 opening
// handshake.
type Dialer struct {
	// Protocols is the list of subprotocols the client offers, in
	// preference order.
	Protocols []string

	// Header, if non-nil, is merged into the upgrade request's headers
	// (e.g. for Origin or Cookie).
	Header http.Header

	// TLSConfig is used when dialing a wss:// URL. A nil value uses
	// tls.Config{}'s defaults plus the URL's host as server name.
	TLSConfig *tls.Config

	// NetDialer, if non-nil, is used to establish the underlying TCP
	// connection instead of the zero-value net.Dialer.
	NetDialer *net.Dialer
}

// DefaultDialer is the zero-value Dialer used by Dial.
var DefaultDialer Dialer

// Dial is a shorthand for DefaultDialer.Dial.
func Dial(urlstr string) (net.Conn, *bufio.Reader, *http.Response, Handshake, error) {
	return DefaultDialer.Dial(urlstr)
}

// Dial performs the client side of the RFC 6455 opening handshake against
// urlstr, which must have scheme "ws" or "wss" and must not contain a
// fragment (per RFC 6455 section 3, fragments must be percent-encoded by
// the caller, not left for Dial to strip).
//
// If the server responds with anything other than 101 Switching Protocols,
// Dial returns the response unchanged and a nil error: that is not a
// protocol failure, it's information for the caller to act on. Any other
// failure — a malformed response, a bad Sec-WebSocket-Accept, an
// unavailable subprotocol — comes back wrapped in a *HandshakeError.
//
// On success the returned net.Conn is the raw, still-open transport and
// the *bufio.Reader holds any bytes already buffered past the handshake
// response (possibly including the start of the first WebSocket frame);
// callers must read through that reader, not conn directly.
func (d Dialer) Dial(urlstr string) (conn net.Conn, br *bufio.Reader, resp *http.Response, hs Handshake, err error) {
	u, err := url.Parse(urlstr)
	if err != nil {
		return nil, nil, nil, Handshake{}, newHandshakeError(err)
	}
	if strings.Contains(urlstr, "#") {
		return nil, nil, nil, Handshake{}, newHandshakeError(ErrBadURLFragment)
	}

	var tlsConn bool
	switch u.Scheme {
	case "ws":
	case "wss":
		tlsConn = true
	default:
		return nil, nil, nil, Handshake{}, newHandshakeError(ErrBadURLScheme)
	}

	addr := u.Host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		if tlsConn {
			addr = net.JoinHostPort(addr, "443")
		} else {
			addr = net.JoinHostPort(addr, "80")
		}
	}

	nd := d.NetDialer
	if nd == nil {
		nd = &net.Dialer{}
	}
	conn, err = nd.Dial("tcp", addr)
	if err != nil {
		return nil, nil, nil, Handshake{}, newHandshakeError(err)
	}
	if tlsConn {
		cfg := d.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg = cfg.Clone()
			cfg.ServerName = u.Hostname()
		}
		conn = tls.Client(conn, cfg)
	}

	conn, br, resp, hs, err = d.handshake(conn, u)
	if err != nil {
		conn.Close()
		return nil, nil, nil, Handshake{}, err
	}
	return conn, br, resp, hs, nil
}

func (d Dialer) handshake(conn net.Conn, u *url.URL) (net.Conn, *bufio.Reader, *http.Response, Handshake, error) {
	nonce, err := NewNonce()
	if err != nil {
		return conn, nil, nil, Handshake{}, newHandshakeError(err)
	}

	req := &http.Request{
		Method:     http.MethodGet,
		URL:        &url.URL{Path: u.RequestURI()},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Host:       u.Host,
	}
	for k, v := range d.Header {
		req.Header[k] = v
	}
	req.Header.Set(HeaderUpgrade, "websocket")
	req.Header.Set(HeaderConnection, "Upgrade")
	req.Header.Set(HeaderSecKey, nonce)
	req.Header.Set(HeaderSecVersion, ProtocolVersion)
	if len(d.Protocols) > 0 {
		req.Header.Set(HeaderSecProto, joinProtocols(d.Protocols))
	}

	if err := req.Write(conn); err != nil {
		return conn, nil, nil, Handshake{}, newHandshakeError(err)
	}

	br := pbufio.GetReader(conn, 4096)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return conn, nil, nil, Handshake{}, newHandshakeError(err)
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		// Not a handshake failure in the protocol sense: the caller gets
		// to inspect the response and decide what it means.
		return conn, br, resp, Handshake{}, nil
	}

	if err := CheckUpgrade(resp.Header); err != nil {
		return conn, nil, nil, Handshake{}, err
	}
	if accept := resp.Header.Get(HeaderSecAccept); !CheckAcceptKey(accept, nonce) {
		return conn, nil, nil, Handshake{}, newHandshakeError(ErrBadSecAccept)
	}

	var hs Handshake
	if proto := resp.Header.Get(HeaderSecProto); proto != "" {
		if _, ok := SelectProtocol([]string{proto}, d.Protocols); !ok {
			return conn, nil, nil, Handshake{}, newHandshakeError(ErrUnsupportedProtocol)
		}
		hs.Protocol = proto
	}

	return conn, br, resp, hs, nil
}

func joinProtocols(protocols []string) string {
	return strings.Join(protocols, ", ")
}
