package ws

// Cipher applies the RFC 6455 XOR masking algorithm to payload in place,
// using mask and starting at the given offset into the mask's 4-byte
// cycle. The same algorithm masks and unmasks: applying it twice with the
// same mask and offset is the identity.
//
// offset lets callers cipher a payload that arrives in chunks (e.g. a
// streaming io.Reader) without buffering the whole frame first.
// See https://tools.ietf.org/html/rfc6455#section-5.3
func Cipher(payload []byte, mask [4]byte, offset int) {
	for i := range payload {
		payload[i] ^= mask[(offset+i)%4]
	}
}
