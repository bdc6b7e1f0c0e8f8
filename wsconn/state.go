package wsconn

import "sync/atomic"

// connState tracks a Conn's position in the OPEN -> CLOSING -> CLOSED
// lifecycle from spec section 4.3. It is manipulated with sync/atomic so
// the read loop and any concurrent writer can both observe and race to
// advance it safely; every transition helper below is idempotent.
type connState int32

const (
	stateOpen connState = iota
	// stateClosingLocal: we called Close() and sent our CLOSE frame, and
	// are waiting for the peer's CLOSE (or a read timeout).
	stateClosingLocal
	// stateClosingRemote: we received the peer's CLOSE and are echoing
	// ours; the connection moves to stateClosed once the echo is flushed.
	stateClosingRemote
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosingLocal:
		return "closing(local)"
	case stateClosingRemote:
		return "closing(remote)"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type stateBox struct{ v atomic.Int32 }

func (b *stateBox) load() connState { return connState(b.v.Load()) }

func (b *stateBox) store(s connState) { b.v.Store(int32(s)) }

// transitionTo moves from "from" to "to" iff the current state is "from".
// It reports whether the transition happened, so callers that race
// (local Close() vs. a concurrently observed remote CLOSE) can tell which
// one won.
func (b *stateBox) transitionTo(from, to connState) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}

// forceClosed unconditionally marks the connection closed, used on
// transport faults where there is no orderly transition to make.
func (b *stateBox) forceClosed() connState {
	for {
		cur := b.load()
		if cur == stateClosed {
			return cur
		}
		if b.v.CompareAndSwap(int32(cur), int32(stateClosed)) {
			return cur
		}
	}
}
