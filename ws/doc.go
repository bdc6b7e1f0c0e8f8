/*
Package ws implements the wire-level primitives of the WebSocket protocol
as specified in RFC 6455: frame headers, masking, the opening handshake and
the status codes used during the closing handshake.

It intentionally stops at framing. It does not own a connection, does not
spawn goroutines and does not implement the connection state machine or
message reassembly — see package wsconn for that. ws gives you:

	h, err := ws.ReadHeader(conn)
	buf := make([]byte, h.Length)
	io.ReadFull(conn, buf)
	ws.Cipher(buf, h.Mask, 0)

and the handshake helpers used to get from an http.Request to a hijacked
net.Conn, or from a URL to a dialed one.
*/
package ws
