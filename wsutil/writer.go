package wsutil

import (
	"io"

	"github.com/gobwas/pool/pbytes"

	"github.com/ericforgy/gowebsocket/ws"
)

const defaultWriteBufferSize = 4096

// WriterConfig configures a Writer.
type WriterConfig struct {
	// Op is the opcode of the message being written (OpText or OpBinary).
	Op ws.OpCode

	// Mask enables RFC 6455 client-side masking of every frame written.
	Mask bool
}

// Writer buffers application data and flushes it as one or more WebSocket
// frames. Calling Write repeatedly and then Flush produces a fragmented
// message: every buffer's worth of data becomes its own non-final frame
// (OpContinuation after the first), and Flush emits the final frame. A
// single Write smaller than the buffer followed directly by Flush produces
// one unfragmented frame, matching the "no hint" case of §4.2. A single
// Write larger than the buffer is itself cut into buffer-sized non-final
// frames as it goes, so the chunk size passed to NewWriterSize bounds every
// frame's length regardless of how the caller chooses to call Write.
//
// Writer is not safe for concurrent use.
type Writer struct {
	dst io.Writer
	buf []byte
	n   int

	dirty  bool
	frames int

	op   ws.OpCode
	mask bool
}

// NewWriter returns a Writer with the default buffer size.
func NewWriter(dst io.Writer, c WriterConfig) *Writer {
	return NewWriterSize(dst, defaultWriteBufferSize, c)
}

// NewWriterSize returns a Writer whose internal buffer is n bytes; frames
// are cut whenever that buffer fills, which makes n the effective
// fragmentation chunk size hint from §4.2.
func NewWriterSize(dst io.Writer, n int, c WriterConfig) *Writer {
	if n <= 0 {
		n = defaultWriteBufferSize
	}
	return &Writer{dst: dst, buf: make([]byte, n), op: c.Op, mask: c.Mask}
}

// Write implements io.Writer, buffering p and flushing complete frames to
// the destination as the buffer fills.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.dirty = true

	if w.n == 0 {
		for len(p) > len(w.buf) {
			nn, err := w.writeFrame(w.opCode(), p[:len(w.buf)], false)
			n += nn
			if err != nil {
				return n, err
			}
			p = p[len(w.buf):]
		}
	}
	for {
		nn := copy(w.buf[w.n:], p)
		p = p[nn:]
		w.n += nn
		n += nn

		if len(p) == 0 {
			return n, nil
		}
		if _, err = w.writeFrame(w.opCode(), w.buf, false); err != nil {
			return n, err
		}
		w.n = 0
	}
}

// Flush writes any buffered bytes as the final frame of the message, even
// if the buffer is empty (an empty message is still one zero-length final
// frame). If Write has not been called since the last Flush, it writes
// nothing.
func (w *Writer) Flush() error {
	if w.n == 0 && !w.dirty {
		return nil
	}
	_, err := w.writeFrame(w.opCode(), w.buf[:w.n], true)
	w.dirty = false
	w.n = 0
	w.frames = 0
	return err
}

func (w *Writer) opCode() ws.OpCode {
	if w.frames > 0 {
		return ws.OpContinuation
	}
	return w.op
}

func (w *Writer) writeFrame(op ws.OpCode, p []byte, fin bool) (n int, err error) {
	header := ws.Header{
		OpCode: op,
		Length: int64(len(p)),
		Fin:    fin,
	}

	payload := p
	if w.mask {
		header.Masked = true
		header.Mask = ws.NewMask()

		payload = pbytes.GetLen(len(p))
		defer pbytes.Put(payload)
		copy(payload, p)
		ws.Cipher(payload, header.Mask, 0)
	}

	if err = ws.WriteHeader(w.dst, header); err != nil {
		return 0, err
	}
	n, err = w.dst.Write(payload)
	w.frames++
	return n, err
}

// WriteMessage writes p as a single, unfragmented message of the given
// opcode, masking it when mask is true.
func WriteMessage(dst io.Writer, op ws.OpCode, p []byte, mask bool) error {
	w := NewWriterSize(dst, len(p), WriterConfig{Op: op, Mask: mask})
	if _, err := w.Write(p); err != nil {
		return err
	}
	return w.Flush()
}
