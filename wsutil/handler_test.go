package wsutil

import (
	"bytes"
	"testing"

	"github.com/ericforgy/gowebsocket/ws"
)

func TestPingHandlerRepliesWithPong(t *testing.T) {
	var out bytes.Buffer
	handle := PingHandler(&out, ws.StateServerSide)

	h := ws.Header{OpCode: ws.OpPing, Fin: true, Length: 4}
	if err := handle(h, bytes.NewReader([]byte("ping"))); err != nil {
		t.Fatalf("handler: %v", err)
	}

	f, err := ws.ReadFrame(&out)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Header.OpCode != ws.OpPong {
		t.Errorf("OpCode = %v; want %v", f.Header.OpCode, ws.OpPong)
	}
	if string(f.Payload) != "ping" {
		t.Errorf("payload = %q; want %q", f.Payload, "ping")
	}
}

func TestCloseHandlerEchoesAndReturnsClosedError(t *testing.T) {
	var out bytes.Buffer
	handle := CloseHandler(&out, ws.StateServerSide)

	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "done")
	h := ws.Header{OpCode: ws.OpClose, Fin: true, Length: int64(len(body))}

	err := handle(h, bytes.NewReader(body))
	closed, ok := err.(ClosedError)
	if !ok {
		t.Fatalf("handler error = %v (%T); want ClosedError", err, err)
	}
	if closed.Code != ws.StatusNormalClosure || closed.Reason != "done" {
		t.Errorf("ClosedError = %+v; want {1000 done}", closed)
	}

	f, ferr := ws.ReadFrame(&out)
	if ferr != nil {
		t.Fatalf("ReadFrame: %v", ferr)
	}
	if f.Header.OpCode != ws.OpClose {
		t.Errorf("echoed OpCode = %v; want %v", f.Header.OpCode, ws.OpClose)
	}
}

func TestCloseHandlerRejectsBadCloseData(t *testing.T) {
	var out bytes.Buffer
	handle := CloseHandler(&out, ws.StateServerSide)

	body := ws.NewCloseFrameBody(ws.StatusNoStatusRcvd, "")
	h := ws.Header{OpCode: ws.OpClose, Fin: true, Length: int64(len(body))}

	if err := handle(h, bytes.NewReader(body)); err != ws.ErrProtocolStatusCodeReserved {
		t.Errorf("err = %v; want %v", err, ws.ErrProtocolStatusCodeReserved)
	}
}

func TestControlHandlerDispatchesByOpcode(t *testing.T) {
	var out bytes.Buffer
	handle := ControlHandler(&out, ws.StateServerSide)

	h := ws.Header{OpCode: ws.OpPong, Fin: true, Length: 3}
	if err := handle(h, bytes.NewReader([]byte("pon"))); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out.Len() != 0 {
		t.Error("pong should not produce any reply bytes")
	}
}
