package wsutil

import (
	"io"
	"strconv"

	"github.com/gobwas/pool/pbytes"

	"github.com/ericforgy/gowebsocket/ws"
)

// ClosedError is returned by CloseHandler once it has processed a peer's
// Close frame and echoed its own.
type ClosedError struct {
	Code   ws.StatusCode
	Reason string
}

func (e ClosedError) Error() string {
	return "wsutil: closed by peer: " + strconv.FormatUint(uint64(e.Code), 10) + " " + e.Reason
}

// PingHandler returns a FrameHandler that replies to a ping frame with a
// pong echoing its payload, writing to w with the masking direction
// implied by state.
func PingHandler(w io.Writer, state ws.State) FrameHandler {
	return func(h ws.Header, r io.Reader) error {
		if h.Length == 0 {
			return sendFrame(w, state, ws.NewPongFrame(nil))
		}
		p := pbytes.GetLen(int(h.Length))
		defer pbytes.Put(p)
		if _, err := io.ReadFull(r, p); err != nil {
			return err
		}
		return sendFrame(w, state, ws.NewPongFrame(p))
	}
}

// PongHandler returns a FrameHandler that discards a pong frame's payload.
// A pong is a unidirectional liveness signal; no response is expected.
func PongHandler(w io.Writer, state ws.State) FrameHandler {
	return func(h ws.Header, r io.Reader) error {
		_, err := io.Copy(io.Discard, r)
		return err
	}
}

// CloseHandler returns a FrameHandler that validates and echoes a close
// frame per RFC 6455 section 5.5.1, then returns a ClosedError describing
// the negotiated close code and reason. An empty close payload is treated
// as the synthetic StatusNoStatusRcvd (1005), never sent on the wire.
func CloseHandler(w io.Writer, state ws.State) FrameHandler {
	return func(h ws.Header, r io.Reader) error {
		if h.Length == 0 {
			if err := sendFrame(w, state, ws.NewCloseFrame(nil)); err != nil {
				return err
			}
			return ClosedError{Code: ws.StatusNoStatusRcvd}
		}

		p := pbytes.GetLen(int(h.Length))
		defer pbytes.Put(p)
		if _, err := io.ReadFull(r, p); err != nil {
			return err
		}

		code, reason := ws.ParseCloseFrameBody(p)
		if err := ws.CheckCloseFrameData(code, reason); err != nil {
			return err
		}

		// RFC6455 5.5.1: echo the status code received.
		if err := sendFrame(w, state, ws.NewCloseFrame(p[:2])); err != nil {
			return err
		}
		return ClosedError{Code: code, Reason: reason}
	}
}

// ControlHandler returns a FrameHandler dispatching ping/pong/close frames
// to PingHandler, PongHandler and CloseHandler respectively, ignoring any
// other opcode (Reader never calls it with a data opcode).
func ControlHandler(w io.Writer, state ws.State) FrameHandler {
	ping := PingHandler(w, state)
	pong := PongHandler(w, state)
	close_ := CloseHandler(w, state)

	return func(h ws.Header, r io.Reader) error {
		switch h.OpCode {
		case ws.OpPing:
			return ping(h, r)
		case ws.OpPong:
			return pong(h, r)
		case ws.OpClose:
			return close_(h, r)
		}
		return nil
	}
}

func sendFrame(w io.Writer, state ws.State, f ws.Frame) error {
	if state.Is(ws.StateClientSide) {
		f = ws.MaskFrameInPlace(f)
	}
	return ws.WriteFrame(w, f)
}
