// Package wsconn is the session façade over ws and wsutil: it owns one
// open connection, enforces the OPEN -> CLOSING -> CLOSED state machine,
// and exposes the handful of blocking operations user code actually calls
// — ReadMessage, WriteMessage, Ping, Pong, Close — each safe to call from
// its own goroutine because reads and writes are independently locked.
package wsconn
