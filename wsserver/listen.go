package wsserver

import (
	"context"
	"net"
	"net/http"
)

// Serve runs an *http.Server backed by Server on ln until the listener is
// closed or ctx is done. It is the thin accept-loop entry point §5
// describes; most callers instead mount Server as an http.Handler on their
// own *http.Server when WebSocket upgrades live alongside ordinary HTTP
// routes.
func Serve(ctx context.Context, ln net.Listener, s *Server) error {
	httpServer := &http.Server{Handler: s, TLSConfig: s.TLSConfig}

	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		httpServer.Close()
		return ctx.Err()
	}
}
