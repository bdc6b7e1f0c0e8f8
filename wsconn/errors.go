package wsconn

import (
	"fmt"

	"github.com/ericforgy/gowebsocket/ws"
)

// PolicyError is returned when a local policy — not the wire protocol —
// rejects an operation, e.g. a message too large for the configured
// limit. It carries the close code the connection will report.
type PolicyError struct {
	Code ws.StatusCode
	err  error
}

func (e *PolicyError) Error() string { return "wsconn: policy violation: " + e.err.Error() }
func (e *PolicyError) Unwrap() error { return e.err }

func newPolicyError(code ws.StatusCode, format string, args ...any) *PolicyError {
	return &PolicyError{Code: code, err: fmt.Errorf(format, args...)}
}

// TransportError wraps a failure of the underlying byte stream (read,
// write or close). The connection is always stateClosed with CloseCode
// ws.StatusAbnormalClosure by the time this is surfaced to a caller.
type TransportError struct {
	err error
}

func (e *TransportError) Error() string { return "wsconn: transport error: " + e.err.Error() }
func (e *TransportError) Unwrap() error { return e.err }

func newTransportError(err error) *TransportError {
	return &TransportError{err: err}
}

// ClosedError is returned by ReadMessage/WriteMessage once the connection
// is no longer Open. It carries the close code and reason the connection
// settled on, regardless of which side initiated closing.
type ClosedError struct {
	Code   ws.StatusCode
	Reason string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("wsconn: closed: code=%d reason=%q", e.Code, e.Reason)
}
