// Package wsserver runs the server side of a WebSocket listener: it
// accepts plain HTTP connections, decides whether each one is a WebSocket
// upgrade request, and for the ones that are, hands a live *wsconn.Conn to
// a user-supplied handler on its own goroutine.
package wsserver
