package wsutil

import (
	"bytes"
	"io"
	"testing"

	"github.com/ericforgy/gowebsocket/ws"
)

func TestReaderSingleFrameMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, ws.OpText, []byte("hello"), false); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	r := NewReader(&buf, ws.StateClientSide)
	h, err := r.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if h.OpCode != ws.OpText {
		t.Fatalf("OpCode = %v; want %v", h.OpCode, ws.OpText)
	}

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("payload = %q; want %q", got, "hello")
	}
}

func TestReaderReassemblesFragments(t *testing.T) {
	var buf bytes.Buffer
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpText, false, []byte("foo"))))
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpContinuation, false, []byte("bar"))))
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpContinuation, true, []byte("baz"))))

	r := NewReader(&buf, ws.StateClientSide)
	if _, err := r.NextFrame(); err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "foobarbaz" {
		t.Errorf("reassembled = %q; want %q", got, "foobarbaz")
	}
}

func TestReaderHandlesIntermediatePing(t *testing.T) {
	var buf bytes.Buffer
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpText, false, []byte("foo"))))
	must(t, ws.WriteFrame(&buf, ws.NewPingFrame([]byte("are you there"))))
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpContinuation, true, []byte("bar"))))

	var pinged []byte
	r := NewReader(&buf, ws.StateClientSide)
	r.OnIntermediate = func(h ws.Header, body io.Reader) error {
		if h.OpCode != ws.OpPing {
			t.Fatalf("unexpected intermediate opcode %v", h.OpCode)
		}
		var err error
		pinged, err = io.ReadAll(body)
		return err
	}

	if _, err := r.NextFrame(); err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "foobar" {
		t.Errorf("reassembled = %q; want %q", got, "foobar")
	}
	if string(pinged) != "are you there" {
		t.Errorf("ping payload seen by handler = %q; want %q", pinged, "are you there")
	}
}

func TestReaderRejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpText, true, []byte{0xff, 0xfe})))

	r := NewReader(&buf, ws.StateClientSide)
	r.CheckUTF8 = true
	if _, err := r.NextFrame(); err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if _, err := io.ReadAll(r); err != ErrInvalidUTF8 {
		t.Errorf("ReadAll err = %v; want %v", err, ErrInvalidUTF8)
	}
}

func TestReaderEnforcesMaskDirection(t *testing.T) {
	var buf bytes.Buffer
	must(t, ws.WriteFrame(&buf, ws.NewFrame(ws.OpText, true, []byte("x"))))

	r := NewReader(&buf, ws.StateServerSide)
	if _, err := r.NextFrame(); err != ws.ErrProtocolMaskRequired {
		t.Errorf("NextFrame err = %v; want %v", err, ws.ErrProtocolMaskRequired)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
