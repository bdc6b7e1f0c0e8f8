package wsutil

import (
	"io"

	"github.com/ericforgy/gowebsocket/ws"
)

// CipherReader wraps an io.Reader holding a masked frame payload and
// unmasks bytes as they are read, tracking position across short reads so
// the mask cycles correctly regardless of how the caller chunks its reads.
type CipherReader struct {
	r    io.Reader
	mask [4]byte
	pos  int
}

// NewCipherReader returns a CipherReader that unmasks bytes read from r
// using mask.
func NewCipherReader(r io.Reader, mask [4]byte) *CipherReader {
	return &CipherReader{r: r, mask: mask}
}

// Reset reuses c for a new masked payload, avoiding an allocation.
func (c *CipherReader) Reset(r io.Reader, mask [4]byte) {
	c.r = r
	c.mask = mask
	c.pos = 0
}

func (c *CipherReader) Read(p []byte) (n int, err error) {
	n, err = c.r.Read(p)
	ws.Cipher(p[:n], c.mask, c.pos)
	c.pos += n
	return n, err
}
