package wsutil

import (
	"errors"
	"io"

	"github.com/ericforgy/gowebsocket/ws"
)

// ErrNoFrameAdvance is returned by Read when it is called without a
// preceding call to NextFrame having returned successfully.
var ErrNoFrameAdvance = errors.New("wsutil: no frame advance")

// FrameHandler handles one parsed frame header and its still-unread body.
type FrameHandler func(h ws.Header, r io.Reader) error

// Reader reassembles WebSocket messages out of a stream of frames read
// from Source, honoring the fragmentation rules of RFC 6455 section 5.4:
// a message is one non-control frame with FIN=0 followed by zero or more
// CONTINUATION frames, the last with FIN=1; control frames may be
// interleaved between fragments without disturbing reassembly.
//
// Reader is not safe for concurrent use.
type Reader struct {
	Source io.Reader
	State  ws.State

	// CheckUTF8 enables incremental UTF-8 validation of OpText payloads.
	CheckUTF8 bool

	// OnIntermediate, if set, is invoked for a control frame received
	// while a data message is mid-fragmentation. If unset, intermediate
	// control frames are silently discarded.
	OnIntermediate FrameHandler

	header ws.Header
	frame  io.Reader
	raw    io.LimitedReader
	cipher CipherReader
	utf8   UTF8Reader
}

// NewReader returns a Reader over r checking frames against state s.
func NewReader(r io.Reader, s ws.State) *Reader {
	return &Reader{Source: r, State: s}
}

// Header returns the header of the frame currently or most recently being
// read.
func (r *Reader) Header() ws.Header { return r.header }

// Read implements io.Reader: it reads the current message's payload,
// transparently advancing across CONTINUATION frames (and any
// OnIntermediate-handled control frames between them) until the message's
// final frame is exhausted, at which point it returns io.EOF.
//
// Every message must be preceded by a NextFrame call; Read returns
// ErrNoFrameAdvance otherwise.
func (r *Reader) Read(p []byte) (n int, err error) {
	if r.frame == nil {
		if !r.State.Is(ws.StateFragmented) {
			return 0, ErrNoFrameAdvance
		}
		if _, err = r.NextFrame(); err != nil {
			return 0, err
		}
		if r.frame == nil {
			// Consumed an intermediate control frame; nothing to
			// return to the caller yet.
			return 0, nil
		}
	}

	n, err = r.frame.Read(p)
	if err == io.EOF {
		switch {
		case r.raw.N != 0:
			err = io.ErrUnexpectedEOF
		case r.State.Is(ws.StateFragmented):
			err = nil
			r.resetFrame()
		case r.CheckUTF8 && r.header.OpCode == ws.OpText && !r.utf8.Valid():
			err = ErrInvalidUTF8
			r.reset()
		default:
			r.reset()
		}
	}
	return n, err
}

// Discard reads and drops every remaining byte of the current message,
// including any further fragments.
func (r *Reader) Discard() error {
	var err error
	for {
		if _, err = io.Copy(io.Discard, &r.raw); err != nil {
			break
		}
		if !r.State.Is(ws.StateFragmented) {
			break
		}
		if _, err = r.NextFrame(); err != nil {
			break
		}
	}
	r.reset()
	return err
}

// NextFrame reads and validates the next frame header from Source and
// prepares Reader to stream its payload. It returns the parsed header;
// callers that only care about control frames can inspect it without
// calling Read at all.
func (r *Reader) NextFrame() (ws.Header, error) {
	h, err := ws.ReadHeader(r.Source)
	if err != nil {
		if err == io.EOF && r.State.Is(ws.StateFragmented) {
			err = io.ErrUnexpectedEOF
		}
		return h, err
	}
	if err := ws.CheckHeader(h, r.State); err != nil {
		return h, err
	}

	r.header = h
	r.raw = io.LimitedReader{R: r.Source, N: h.Length}

	var frame io.Reader = &r.raw
	if h.Masked {
		r.cipher.Reset(frame, h.Mask)
		frame = &r.cipher
	}

	if r.State.Is(ws.StateFragmented) && h.OpCode.IsControl() {
		if cb := r.OnIntermediate; cb != nil {
			err = cb(h, frame)
		}
		if err == nil {
			_, err = io.Copy(io.Discard, &r.raw)
		}
		return h, err
	}

	if r.CheckUTF8 && h.OpCode == ws.OpText {
		r.utf8 = UTF8Reader{Source: frame}
		frame = &r.utf8
	}

	r.frame = frame
	r.State = r.State.SetOrClearIf(!h.Fin, ws.StateFragmented)

	return h, nil
}

func (r *Reader) resetFrame() {
	r.raw = io.LimitedReader{}
	r.frame = nil
}

func (r *Reader) reset() {
	r.resetFrame()
	r.utf8 = UTF8Reader{}
}

// NextReader reads the next message's initial frame off r and returns an
// io.Reader for its payload, reassembling continuation frames as needed.
// The returned Reader has no OnIntermediate handler, so control frames
// interleaved mid-fragment are discarded — use Reader directly with
// OnIntermediate set to act on them.
func NextReader(r io.Reader, s ws.State) (ws.Header, io.Reader, error) {
	rd := NewReader(r, s)
	h, err := rd.NextFrame()
	if err != nil {
		return h, nil, err
	}
	return h, rd, nil
}
