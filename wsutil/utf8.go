package wsutil

import (
	"errors"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by Reader.Read, with CheckUTF8 set, at the end
// of a text message whose UTF8Reader reports it not Valid.
var ErrInvalidUTF8 = errors.New("wsutil: invalid utf8 sequence")

// UTF8Reader wraps Source and validates that everything read from it forms
// valid UTF-8, incrementally and safely across arbitrary read-chunk
// boundaries: an incomplete multi-byte rune split across two Read calls is
// not flagged invalid until it's clear it can never complete.
//
// Read itself never returns ErrInvalidUTF8; it returns the bytes as read.
// Callers check Valid() once they believe the message is complete (i.e.
// Source returned io.EOF) and fail the connection with close code 1007 if
// it reports false.
type UTF8Reader struct {
	Source io.Reader

	tail    []byte // incomplete rune prefix carried over between reads
	invalid bool
}

// Read implements io.Reader, passing bytes through from Source unchanged
// while tracking UTF-8 validity as a side effect.
func (u *UTF8Reader) Read(p []byte) (n int, err error) {
	n, err = u.Source.Read(p)
	if n > 0 && !u.invalid {
		u.invalid = !u.consume(p[:n])
	}
	if err == io.EOF && len(u.tail) > 0 {
		// A rune was left incomplete with no more bytes coming.
		u.invalid = true
	}
	return n, err
}

// Valid reports whether every byte read so far forms valid, complete
// UTF-8. It should be called only after Source has been fully drained.
func (u *UTF8Reader) Valid() bool {
	return !u.invalid && len(u.tail) == 0
}

func (u *UTF8Reader) consume(b []byte) bool {
	buf := b
	if len(u.tail) > 0 {
		buf = append(append(make([]byte, 0, len(u.tail)+len(b)), u.tail...), b...)
		u.tail = nil
	}
	for len(buf) > 0 {
		if utf8.FullRune(buf) {
			r, size := utf8.DecodeRune(buf)
			if r == utf8.RuneError && size == 1 {
				return false
			}
			buf = buf[size:]
			continue
		}
		// Not enough bytes yet to know: stash and wait for the rest.
		u.tail = append([]byte{}, buf...)
		return true
	}
	return true
}
