// Package wsutil builds on ws to reassemble fragmented WebSocket messages,
// validate UTF-8 on text messages incrementally, write fragmented
// messages, and dispatch control frames (ping/pong/close) to handlers.
//
// It is the "message assembler" layer: it knows about continuation frames
// and interleaved control frames, but nothing about connection lifecycle —
// see package wsconn for that.
package wsutil
