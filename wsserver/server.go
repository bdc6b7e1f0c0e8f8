package wsserver

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ericforgy/gowebsocket/ws"
	"github.com/ericforgy/gowebsocket/wsconn"
)

// DefaultReadTimeout mirrors wsconn.DefaultReadTimeout: how long a
// connection may sit in a half-closed state before it's abandoned.
const DefaultReadTimeout = wsconn.DefaultReadTimeout

// DefaultRateLimit and DefaultRateBurst are the per-remote-address
// defaults applied when a Server doesn't set RateLimit/RateBurst.
const (
	DefaultRateLimit = rate.Limit(10)
	DefaultRateBurst = 1
)

// HandlerFunc is invoked once per successfully upgraded connection, on its
// own goroutine. The connection is closed when the function returns.
type HandlerFunc func(*wsconn.Conn)

// HandlerWithRequestFunc is like HandlerFunc but additionally receives the
// headers of the original HTTP upgrade request, for handlers that need to
// inspect cookies or auth headers the ws package itself doesn't surface.
type HandlerWithRequestFunc func(header http.Header, conn *wsconn.Conn)

// Server accepts plain net/http connections and upgrades the ones that ask
// for it to WebSocket sessions. Configure it with plain struct fields, in
// the same shape as ws.Upgrader/ws.Dialer, then call Serve with a
// net/http-compatible listener via http.Serve, or register it directly as
// an http.Handler with an *http.Server.
type Server struct {
	// TLSConfig is informational only here; wrap the net.Listener passed
	// to Serve (e.g. tls.NewListener) to actually terminate TLS — Server
	// never dials or listens itself.
	TLSConfig *tls.Config

	// ReadTimeout bounds how long a connection may wait, once it or its
	// peer has sent a CLOSE frame, for the closing handshake to finish.
	// Zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	// RateLimit and RateBurst configure the per-remote-address token
	// bucket that upgrade requests are checked against before Handler
	// runs. Zero RateLimit means DefaultRateLimit; zero RateBurst means
	// DefaultRateBurst.
	RateLimit rate.Limit
	RateBurst int

	// ChunkSize is the outbound fragmentation hint passed to every Conn
	// this server creates; see wsconn.WithChunkSize.
	ChunkSize int

	// Protocols lists the subprotocols this server supports, most
	// preferred first.
	Protocols []string

	// Log receives structured diagnostics; the zero value logs nothing.
	Log zerolog.Logger

	// Handler and HandlerWithRequest are mutually exclusive; set exactly
	// one. If both are nil, every upgrade is accepted and immediately
	// closed with code 1011.
	Handler             HandlerFunc
	HandlerWithRequest  HandlerWithRequestFunc

	initOnce sync.Once
	limiter  *ipLimiter
	errc     chan error
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		limit := s.RateLimit
		if limit == 0 {
			limit = DefaultRateLimit
		}
		burst := s.RateBurst
		if burst == 0 {
			burst = DefaultRateBurst
		}
		s.limiter = newIPLimiter(limit, burst)
		s.errc = make(chan error, 64)
	})
}

// Errors returns the channel Server reports handler panics and failed
// upgrades on. It never blocks a connection: if nobody is reading
// from Errors(), reports are dropped once the channel's buffer is full.
func (s *Server) Errors() <-chan error {
	s.init()
	return s.errc
}

// ServeHTTP implements http.Handler: every request that looks like a
// WebSocket upgrade (ws.IsUpgrade) is upgraded and handed to Handler or
// HandlerWithRequest on a new goroutine; anything else gets a 400.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.init()

	if !ws.IsUpgrade(r) {
		http.Error(w, "expected websocket upgrade", http.StatusBadRequest)
		return
	}

	if !s.limiter.Allow(remoteAddrOf(r)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	reqHeader := r.Header.Clone()

	readTimeout := s.ReadTimeout
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}

	conn, err := wsconn.Upgrade(w, r,
		wsconn.WithSupportedProtocols(s.Protocols...),
		wsconn.WithConnOptions(
			wsconn.WithReadTimeout(readTimeout),
			wsconn.WithChunkSize(s.ChunkSize),
			wsconn.WithLogger(s.Log),
		),
	)
	if err != nil {
		s.report(fmt.Errorf("wsserver: upgrade: %w", err))
		return
	}

	go s.serveConn(reqHeader, conn)
}

func (s *Server) serveConn(reqHeader http.Header, conn *wsconn.Conn) {
	defer func() {
		if v := recover(); v != nil {
			s.report(fmt.Errorf("wsserver: handler panic: %v", v))
			conn.Close(ws.StatusInternalServerError, "")
		}
	}()

	switch {
	case s.HandlerWithRequest != nil:
		s.HandlerWithRequest(reqHeader, conn)
	case s.Handler != nil:
		s.Handler(conn)
	default:
		conn.Close(ws.StatusInternalServerError, "no handler configured")
		return
	}

	conn.Close(ws.StatusNormalClosure, "")
}

func (s *Server) report(err error) {
	select {
	case s.errc <- err:
	default:
	}
}

func remoteAddrOf(r *http.Request) remoteAddr { return remoteAddr(r.RemoteAddr) }

// remoteAddr adapts http.Request.RemoteAddr (a "host:port" string) to the
// net.Addr interface the limiter expects, without pulling in a real
// net.Conn just to satisfy it.
type remoteAddr string

func (a remoteAddr) Network() string { return "tcp" }
func (a remoteAddr) String() string  { return string(a) }
