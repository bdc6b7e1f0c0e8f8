package wsconn

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/pool/pbufio"
	"github.com/rs/zerolog"

	"github.com/ericforgy/gowebsocket/ws"
	"github.com/ericforgy/gowebsocket/wsutil"
)

// DefaultReadTimeout is the bound spec section 5 places on how long a
// half-closed connection (we sent CLOSE, waiting for the peer's) is
// allowed to sit before the transport is force-closed.
const DefaultReadTimeout = 180 * time.Second

// writeBufferSize is the pooled bufio.Writer size each Conn borrows for
// the lifetime of the connection, matching the teacher's hijack-path
// buffer size in ws.Upgrader.Upgrade.
const writeBufferSize = 4096

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Conn) { c.readTimeout = d }
}

// WithChunkSize sets the outbound fragmentation hint (spec section 4.2):
// messages written via WriteMessage larger than n bytes are split into a
// leading frame and one or more CONTINUATION frames of at most n bytes
// each. Zero (the default) means "don't fragment."
func WithChunkSize(n int) Option {
	return func(c *Conn) { c.chunkSize = n }
}

// WithLogger attaches a structured logger; absent one, Conn logs nothing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Conn) { c.log = log }
}

// WithProtocol records the subprotocol negotiated during the handshake,
// for later inspection via Conn.Protocol.
func WithProtocol(proto string) Option {
	return func(c *Conn) { c.protocol = proto }
}

// Conn is a single, established WebSocket connection: the handle described
// by spec section 3. Construct one via Dial (client) or Upgrade (server),
// not directly.
type Conn struct {
	role      Role
	transport net.Conn
	bw        *bufio.Writer
	reader    *wsutil.Reader

	log         zerolog.Logger
	readTimeout time.Duration
	chunkSize   int
	protocol    string

	readMu  sync.Mutex
	writeMu sync.Mutex

	state     stateBox
	closeOnce sync.Once
	closeMu   sync.Mutex
	closeInfo Close
}

func newConn(role Role, transport net.Conn, br *bufio.Reader, opts ...Option) *Conn {
	c := &Conn{
		role:        role,
		transport:   transport,
		bw:          pbufio.GetWriter(transport, writeBufferSize),
		log:         zerolog.Nop(),
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reader = wsutil.NewReader(br, c.wsState())
	c.reader.CheckUTF8 = true
	c.reader.OnIntermediate = c.controlHandler()
	return c
}

// Role reports whether this Conn is playing the client or server side.
func (c *Conn) Role() Role { return c.role }

// Protocol returns the subprotocol negotiated during the handshake, or ""
// if none was.
func (c *Conn) Protocol() string { return c.protocol }

// RemoteAddr returns the underlying transport's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.transport.RemoteAddr() }

func (c *Conn) wsState() ws.State {
	if c.role == RoleServer {
		return ws.StateServerSide
	}
	return ws.StateClientSide
}

func (c *Conn) masked() bool { return c.role == RoleClient }

// ReadMessage blocks until the next application message arrives, a CLOSE
// is negotiated, or an error occurs. On a negotiated close it returns the
// zero Message together with a *ClosedError describing the close code and
// reason — callers distinguish "peer said goodbye" from a real failure by
// checking for that type with errors.As.
func (c *Conn) ReadMessage() (Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.state.load() == stateClosed {
		return Message{}, c.terminalError()
	}

	for {
		h, err := c.reader.NextFrame()
		if err != nil {
			if isProtocolViolation(err) {
				return Message{}, c.failProtocol(closeCodeFor(err), err)
			}
			return Message{}, c.failTransport(err)
		}

		if h.OpCode.IsControl() {
			cerr := c.controlHandler()(h, c.reader)
			if cerr == nil {
				continue
			}
			var closed wsutil.ClosedError
			if errors.As(cerr, &closed) {
				return Message{}, c.onPeerClose(closed.Code, closed.Reason)
			}
			return Message{}, c.failProtocol(closeCodeFor(cerr), cerr)
		}

		data, err := io.ReadAll(c.reader)
		if err != nil {
			if isProtocolViolation(err) {
				return Message{}, c.failProtocol(closeCodeFor(err), err)
			}
			return Message{}, c.failTransport(err)
		}

		kind := Text
		if h.OpCode == ws.OpBinary {
			kind = Binary
		}
		return Message{Kind: kind, Data: data}, nil
	}
}

// WriteMessage writes a complete application message, fragmenting it per
// the configured chunk size. It fails with *ClosedError if the connection
// is not Open.
func (c *Conn) WriteMessage(kind MessageKind, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.state.load() != stateOpen {
		return c.terminalError()
	}

	chunk := c.chunkSize
	if chunk <= 0 {
		// No hint: size the buffer to the whole message so it goes out
		// as a single frame.
		chunk = len(data)
	}
	w := wsutil.NewWriterSize(c.bw, chunk, wsutil.WriterConfig{
		Op:   kind.opCode(),
		Mask: c.masked(),
	})
	if _, err := w.Write(data); err != nil {
		return c.failTransport(err)
	}
	if err := w.Flush(); err != nil {
		return c.failTransport(err)
	}
	if err := c.bw.Flush(); err != nil {
		return c.failTransport(err)
	}
	return nil
}

// Ping sends a PING control frame carrying payload, which must be at most
// ws.MaxControlFramePayloadSize bytes.
func (c *Conn) Ping(payload []byte) error {
	return c.writeControl(ws.NewPingFrame(payload))
}

// Pong sends an unsolicited PONG control frame.
func (c *Conn) Pong(payload []byte) error {
	return c.writeControl(ws.NewPongFrame(payload))
}

func (c *Conn) writeControl(f ws.Frame) error {
	if len(f.Payload) > ws.MaxControlFramePayloadSize {
		return newPolicyError(ws.StatusPolicyViolation, "control frame payload of %d bytes exceeds %d byte limit", len(f.Payload), ws.MaxControlFramePayloadSize)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.state.load() != stateOpen {
		return c.terminalError()
	}
	return c.sendFrameLocked(f)
}

// sendFrameLocked writes f to the wire as one flushed unit. Callers must
// hold writeMu.
func (c *Conn) sendFrameLocked(f ws.Frame) error {
	if c.masked() {
		f = ws.MaskFrameInPlace(f)
	}
	if err := ws.WriteFrame(c.bw, f); err != nil {
		return c.failTransport(err)
	}
	if err := c.bw.Flush(); err != nil {
		return c.failTransport(err)
	}
	return nil
}

// Close initiates (or idempotently re-acknowledges) the closing handshake
// with the given code and reason. It sends our CLOSE frame if one hasn't
// gone out yet, then blocks until the peer's CLOSE is observed by the read
// loop or ReadTimeout elapses, per spec section 4.3 / 9's read-deadline
// resolution. It always returns nil once the connection is settled; the
// negotiated outcome is available via LastClose.
func (c *Conn) Close(code ws.StatusCode, reason string) error {
	code = ws.SanitizeOutgoing(code)

	if c.state.transitionTo(stateOpen, stateClosingLocal) {
		c.writeMu.Lock()
		err := c.sendFrameLocked(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
		c.writeMu.Unlock()
		if err != nil {
			// failTransport already forced stateClosed and recorded 1006.
			return nil
		}
		c.transport.SetReadDeadline(time.Now().Add(c.readTimeout))
		c.drainUntilClosed()
		return nil
	}

	// Already closing or closed: nothing new to send, just wait for the
	// in-flight transition (if any) to finish settling closeInfo.
	c.drainUntilClosed()
	return nil
}

// drainUntilClosed blocks the calling goroutine, reading frames itself if
// no other goroutine is already in ReadMessage, until the state machine
// reaches stateClosed.
func (c *Conn) drainUntilClosed() {
	if c.state.load() == stateClosed {
		return
	}
	// Try to become the reader; if ReadMessage is already running
	// elsewhere, it alone will drive the transition and we just poll the
	// state until it settles.
	if c.readMu.TryLock() {
		defer c.readMu.Unlock()
		for c.state.load() != stateClosed {
			h, err := c.reader.NextFrame()
			if err != nil {
				if isProtocolViolation(err) {
					c.failProtocol(closeCodeFor(err), err)
				} else {
					c.failTransport(err)
				}
				return
			}
			if h.OpCode.IsControl() {
				cerr := c.controlHandler()(h, c.reader)
				if cerr == nil {
					continue
				}
				var closed wsutil.ClosedError
				if errors.As(cerr, &closed) {
					c.onPeerClose(closed.Code, closed.Reason)
					return
				}
				c.failProtocol(closeCodeFor(cerr), cerr)
				return
			}
			// A data frame arrived while we're closing locally; the
			// peer hasn't caught up yet. Discard it and keep waiting.
			io.Copy(io.Discard, c.reader) //nolint:errcheck
		}
		return
	}
	for c.state.load() != stateClosed {
		time.Sleep(time.Millisecond)
	}
}

// LastClose returns the negotiated close code and reason once the
// connection has reached Closed. Before that it returns the zero Close.
func (c *Conn) LastClose() Close {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeInfo
}

// controlHandler builds a wsutil.FrameHandler bound to this Conn's write
// path, reused both for top-level control frames encountered by
// ReadMessage/drainUntilClosed and for frames interleaved mid-fragment
// (wired as Reader.OnIntermediate in newConn).
func (c *Conn) controlHandler() wsutil.FrameHandler {
	return func(h ws.Header, r io.Reader) error {
		switch h.OpCode {
		case ws.OpPing:
			payload, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			c.writeMu.Lock()
			err = c.sendFrameLocked(ws.NewPongFrame(payload))
			c.writeMu.Unlock()
			return err

		case ws.OpPong:
			_, err := io.Copy(io.Discard, r)
			return err

		case ws.OpClose:
			payload, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			var code ws.StatusCode
			var reason string
			var echoBody []byte
			if len(payload) > 0 {
				code, reason = ws.ParseCloseFrameBody(payload)
				if cerr := ws.CheckCloseFrameData(code, reason); cerr != nil {
					return cerr
				}
				echoBody = ws.NewCloseFrameBody(ws.SanitizeOutgoing(code), "")
			} else {
				// No status code was sent; 1005 is a local-use-only code
				// that MUST NOT appear on the wire (RFC 6455 section
				// 7.4.1), so the echo carries no body at all.
				code = ws.StatusNoStatusRcvd
			}

			if c.state.transitionTo(stateOpen, stateClosingRemote) {
				c.writeMu.Lock()
				sendErr := c.sendFrameLocked(ws.NewCloseFrame(echoBody))
				c.writeMu.Unlock()
				if sendErr != nil {
					return sendErr
				}
			}
			// If we were already stateClosingLocal, the peer's CLOSE is
			// exactly what we were waiting for; no frame to send back.
			return wsutil.ClosedError{Code: code, Reason: reason}
		}
		return nil
	}
}

func (c *Conn) onPeerClose(code ws.StatusCode, reason string) error {
	c.closeMu.Lock()
	c.closeInfo = Close{Code: code, Reason: reason}
	c.closeMu.Unlock()
	c.state.forceClosed()
	c.closeTransport()
	return &ClosedError{Code: code, Reason: reason}
}

func (c *Conn) failProtocol(code ws.StatusCode, cause error) error {
	c.writeMu.Lock()
	c.sendFrameLocked(ws.NewCloseFrame(ws.NewCloseFrameBody(code, truncateReason(cause.Error())))) //nolint:errcheck
	c.writeMu.Unlock()
	c.closeMu.Lock()
	c.closeInfo = Close{Code: code, Reason: cause.Error()}
	c.closeMu.Unlock()
	c.state.forceClosed()
	c.closeTransport()
	return &ClosedError{Code: code, Reason: cause.Error()}
}

func (c *Conn) failTransport(cause error) error {
	if errors.Is(cause, io.EOF) || errors.Is(cause, io.ErrUnexpectedEOF) {
		c.closeMu.Lock()
		if c.closeInfo.Code == 0 {
			c.closeInfo = Close{Code: ws.StatusAbnormalClosure}
		}
		c.closeMu.Unlock()
	} else {
		c.closeMu.Lock()
		c.closeInfo = Close{Code: ws.StatusAbnormalClosure, Reason: cause.Error()}
		c.closeMu.Unlock()
	}
	c.state.forceClosed()
	c.closeTransport()
	return newTransportError(cause)
}

// closeTransport returns the pooled write buffer and closes the
// underlying connection. Safe to call more than once.
func (c *Conn) closeTransport() {
	c.closeOnce.Do(func() {
		pbufio.PutWriter(c.bw)
		c.transport.Close()
	})
}

func (c *Conn) terminalError() error {
	info := c.LastClose()
	return &ClosedError{Code: info.Code, Reason: info.Reason}
}

// closeCodeFor picks the close code a protocol violation should be
// reported with: 1007 for invalid UTF-8 (in a close reason or a text
// message), 1002 for everything else CheckHeader/CheckCloseFrameData/the
// reader can raise.
func closeCodeFor(err error) ws.StatusCode {
	if errors.Is(err, ws.ErrProtocolInvalidUTF8) || errors.Is(err, wsutil.ErrInvalidUTF8) {
		return ws.StatusInvalidFramePayloadData
	}
	return ws.StatusProtocolError
}

// isProtocolViolation reports whether err is one of the RFC 6455 framing
// violations CheckHeader/CheckCloseFrameData/the reader can surface
// (reserved opcode, non-zero RSV, bad mask direction, oversized or
// fragmented control frame, invalid UTF-8) as opposed to a genuine
// transport failure. These must fail the connection with a local CLOSE
// (spec section 7), never a silent 1006.
func isProtocolViolation(err error) bool {
	var protoErr ws.ProtocolError
	return errors.As(err, &protoErr) || errors.Is(err, wsutil.ErrInvalidUTF8)
}

func truncateReason(s string) string {
	const max = ws.MaxControlFramePayloadSize - 2
	if len(s) > max {
		return s[:max]
	}
	return s
}
