package wsconn

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/ericforgy/gowebsocket/ws"
)

// UpgradeOption configures the server side of a handshake before Upgrade
// builds the resulting Conn.
type UpgradeOption func(*upgradeConfig)

type upgradeConfig struct {
	protocols []string
	connOpts  []Option
}

// WithSupportedProtocols restricts Upgrade to accepting one of protocols,
// most preferred first.
func WithSupportedProtocols(protocols ...string) UpgradeOption {
	return func(c *upgradeConfig) { c.protocols = protocols }
}

// WithConnOptions threads Option values (WithReadTimeout, WithChunkSize,
// WithLogger) through to the Conn Upgrade produces.
func WithConnOptions(opts ...Option) UpgradeOption {
	return func(c *upgradeConfig) { c.connOpts = append(c.connOpts, opts...) }
}

// Upgrade performs the server side of the opening handshake against r and,
// on success, returns a live Conn ready for ReadMessage/WriteMessage. On
// failure it has already written an error response to w and returns a
// *ws.HandshakeError.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...UpgradeOption) (*Conn, error) {
	cfg := upgradeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	u := ws.Upgrader{Protocols: cfg.protocols}
	conn, rw, hs, err := u.Upgrade(w, r)
	if err != nil {
		return nil, err
	}

	connOpts := append([]Option{WithProtocol(hs.Protocol)}, cfg.connOpts...)
	return newConn(RoleServer, conn, rw.Reader, connOpts...), nil
}

// DialOption configures the client side of a handshake before Dial builds
// the resulting Conn.
type DialOption func(*dialConfig)

type dialConfig struct {
	dialer   ws.Dialer
	connOpts []Option
}

// WithOfferedProtocols sets the subprotocols the client offers, in
// preference order.
func WithOfferedProtocols(protocols ...string) DialOption {
	return func(c *dialConfig) { c.dialer.Protocols = protocols }
}

// WithHeader merges h into the upgrade request's headers.
func WithHeader(h http.Header) DialOption {
	return func(c *dialConfig) { c.dialer.Header = h }
}

// WithDialerConnOptions threads Option values through to the Conn Dial
// produces.
func WithDialerConnOptions(opts ...Option) DialOption {
	return func(c *dialConfig) { c.connOpts = append(c.connOpts, opts...) }
}

// Dial performs the client side of the opening handshake against urlstr. If
// the server answers with anything other than 101 Switching Protocols, Dial
// returns the raw *http.Response and a nil Conn and error, matching
// ws.Dialer.Dial's contract that a non-101 reply is information, not a
// handshake failure.
func Dial(ctx context.Context, urlstr string, opts ...DialOption) (*Conn, *http.Response, error) {
	cfg := dialConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	type result struct {
		conn *Conn
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)

	go func() {
		conn, br, resp, hs, err := cfg.dialer.Dial(urlstr)
		if err != nil {
			done <- result{err: err}
			return
		}
		if resp.StatusCode != http.StatusSwitchingProtocols {
			// We don't hand the raw socket back through this façade, so
			// buffer the body now and drop the connection rather than
			// leak it waiting for a Close the caller has no handle for.
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			conn.Close()
			done <- result{resp: resp}
			return
		}
		connOpts := append([]Option{WithProtocol(hs.Protocol)}, cfg.connOpts...)
		done <- result{conn: newConn(RoleClient, conn, br, connOpts...), resp: resp}
	}()

	select {
	case r := <-done:
		return r.conn, r.resp, r.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Open dials urlstr and, on a successful upgrade, invokes handler
// synchronously with the live Conn. Whether handler returns normally or
// panics having already called Close itself, Open always attempts a normal
// closing handshake (code 1000) before returning, matching the "always
// closes" contract of the façade's open operation. If the server responds
// with anything other than 101, handler is never invoked and the raw
// response is returned unchanged.
func Open(ctx context.Context, urlstr string, handler func(*Conn), opts ...DialOption) (*http.Response, error) {
	conn, resp, err := Dial(ctx, urlstr, opts...)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return resp, nil
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	handler(conn)
	return resp, nil
}
