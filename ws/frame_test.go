package ws

import (
	"bytes"
	"fmt"
	"testing"
)

func TestOpCodeIsControl(t *testing.T) {
	for _, test := range []struct {
		code OpCode
		exp  bool
	}{
		{OpClose, true},
		{OpPing, true},
		{OpPong, true},
		{OpBinary, false},
		{OpText, false},
		{OpContinuation, false},
	} {
		t.Run(fmt.Sprintf("0x%02x", test.code), func(t *testing.T) {
			if act := test.code.IsControl(); act != test.exp {
				t.Errorf("IsControl = %v; want %v", act, test.exp)
			}
		})
	}
}

func TestOpCodeIsReserved(t *testing.T) {
	for _, test := range []struct {
		code OpCode
		exp  bool
	}{
		{OpContinuation, false},
		{OpText, false},
		{OpBinary, false},
		{OpClose, false},
		{OpPing, false},
		{OpPong, false},
		{0x3, true},
		{0x7, true},
		{0xb, true},
		{0xf, true},
	} {
		t.Run(fmt.Sprintf("0x%02x", test.code), func(t *testing.T) {
			if act := test.code.IsReserved(); act != test.exp {
				t.Errorf("IsReserved = %v; want %v", act, test.exp)
			}
		})
	}
}

func TestSanitizeOutgoing(t *testing.T) {
	for _, test := range []struct {
		in, exp StatusCode
	}{
		{StatusNormalClosure, StatusNormalClosure},
		{StatusProtocolError, StatusProtocolError},
		{StatusNoStatusRcvd, StatusNormalClosure},
		{StatusAbnormalClosure, StatusNormalClosure},
		{StatusTLSHandshake, StatusNormalClosure},
	} {
		t.Run(fmt.Sprintf("%d", test.in), func(t *testing.T) {
			if act := SanitizeOutgoing(test.in); act != test.exp {
				t.Errorf("SanitizeOutgoing(%d) = %d; want %d", test.in, act, test.exp)
			}
		})
	}
}

func TestCloseFrameBodyRoundTrip(t *testing.T) {
	for _, test := range []struct {
		code   StatusCode
		reason string
	}{
		{StatusNormalClosure, ""},
		{StatusGoingAway, "bye"},
		{StatusProtocolError, "bad frame"},
	} {
		t.Run(fmt.Sprintf("%d/%s", test.code, test.reason), func(t *testing.T) {
			body := NewCloseFrameBody(test.code, test.reason)
			code, reason := ParseCloseFrameBody(body)
			if code != test.code {
				t.Errorf("code = %d; want %d", code, test.code)
			}
			if reason != test.reason {
				t.Errorf("reason = %q; want %q", reason, test.reason)
			}
		})
	}
}

func TestCloseFrameBodyCropsLongReason(t *testing.T) {
	reason := bytes.Repeat([]byte("x"), 200)
	body := NewCloseFrameBody(StatusNormalClosure, string(reason))
	if len(body) > MaxControlFramePayloadSize {
		t.Fatalf("body length = %d; want <= %d", len(body), MaxControlFramePayloadSize)
	}
}

func TestMaskFrameRoundTrip(t *testing.T) {
	payload := []byte("round trip me")
	f := NewTextFrame(string(payload))

	masked := MaskFrameInPlaceWith(f, [4]byte{1, 2, 3, 4})
	if !masked.Header.Masked {
		t.Fatal("expected Masked header bit to be set")
	}

	unmasked := make([]byte, len(masked.Payload))
	copy(unmasked, masked.Payload)
	Cipher(unmasked, masked.Header.Mask, 0)

	if !bytes.Equal(unmasked, payload) {
		t.Errorf("unmasked payload = %q; want %q", unmasked, payload)
	}
}

func TestHeaderSize(t *testing.T) {
	for _, test := range []struct {
		h   Header
		exp int
	}{
		{Header{Length: 10}, 2},
		{Header{Length: 125}, 2},
		{Header{Length: 126}, 4},
		{Header{Length: 0xffff}, 4},
		{Header{Length: 0x10000}, 10},
		{Header{Length: 10, Masked: true}, 6},
	} {
		t.Run(fmt.Sprintf("len=%d,masked=%v", test.h.Length, test.h.Masked), func(t *testing.T) {
			if act := HeaderSize(test.h); act != test.exp {
				t.Errorf("HeaderSize = %d; want %d", act, test.exp)
			}
		})
	}
}
