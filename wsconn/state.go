// File: wsconn/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The connection state machine (C6), per spec.md §4.4. CONNECTING (the
// pre-handshake state) lives outside this package: a Conn is constructed
// only once the handshake collaborator (wshandshake) has already produced
// a negotiated transport, so every Conn starts life in StateOpen.

package wsconn

import "fmt"

// State is one of the four connection lifecycle states of spec.md §4.4.
type State int32

const (
	StateOpen State = iota
	StateClosingLocal  // we sent CLOSE, peer CLOSE not yet received
	StateClosingRemote // peer sent CLOSE, we have not
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosingLocal:
		return "closing_local"
	case StateClosingRemote:
		return "closing_remote"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
