package wsconn

import "github.com/ericforgy/gowebsocket/ws"

// Role identifies which side of the connection a Conn plays, which in turn
// decides masking direction: clients mask every outbound frame, servers
// mask none.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// MessageKind distinguishes the two application-level message types.
type MessageKind int

const (
	Text MessageKind = iota
	Binary
)

func (k MessageKind) String() string {
	if k == Binary {
		return "binary"
	}
	return "text"
}

func (k MessageKind) opCode() ws.OpCode {
	if k == Binary {
		return ws.OpBinary
	}
	return ws.OpText
}

// Message is one reassembled application-level WebSocket message.
type Message struct {
	Kind MessageKind
	Data []byte
}

// Close describes the terminal state of a connection: the negotiated
// close code and the UTF-8 reason, if any, that came with it.
type Close struct {
	Code   ws.StatusCode
	Reason string
}
