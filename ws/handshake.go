package ws

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"hash"
	"sync"
)

const (
	// RFC6455: The value of this header field MUST be a nonce consisting
	// of a randomly selected 16-byte value that has been base64-encoded.
	nonceKeySize = 16
	nonceSize    = 24 // base64.StdEncoding.EncodedLen(nonceKeySize)

	acceptSize = 28 // base64.StdEncoding.EncodedLen(sha1.Size)
)

// webSocketGUID is concatenated onto Sec-WebSocket-Key before hashing, per
// RFC 6455 section 1.3.
var webSocketGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

var sha1Pool = sync.Pool{New: func() any { return sha1.New() }}

func acquireSha1() hash.Hash {
	return sha1Pool.Get().(hash.Hash)
}

func releaseSha1(h hash.Hash) {
	h.Reset()
	sha1Pool.Put(h)
}

// NewNonce returns a fresh, base64-encoded Sec-WebSocket-Key value.
func NewNonce() (string, error) {
	raw := make([]byte, nonceKeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("ws: generating nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ComputeAcceptKey computes the Sec-WebSocket-Accept value for a given
// Sec-WebSocket-Key, as specified by RFC 6455 section 4.2.2:
//
//	base64(SHA1(key ++ "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
func ComputeAcceptKey(key string) string {
	sha := acquireSha1()
	defer releaseSha1(sha)

	sha.Write([]byte(key))
	sha.Write(webSocketGUID)

	return base64.StdEncoding.EncodeToString(sha.Sum(nil))
}

// CheckAcceptKey reports whether accept is the correct Sec-WebSocket-Accept
// value for the given Sec-WebSocket-Key.
func CheckAcceptKey(accept, key string) bool {
	if len(accept) != acceptSize {
		return false
	}
	return accept == ComputeAcceptKey(key)
}

// validNonce reports whether key looks like a well-formed
// Sec-WebSocket-Key: exactly nonceSize base64 characters that decode to
// nonceKeySize raw bytes.
func validNonce(key string) bool {
	if len(key) != nonceSize {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	return err == nil && len(raw) == nonceKeySize
}
