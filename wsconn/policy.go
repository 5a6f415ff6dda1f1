// File: wsconn/policy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wsconn

import (
	"time"

	"github.com/momentics/wscore/wsexec"
	"github.com/momentics/wscore/wsframe"
)

// Policy captures the per-connection configuration named in spec.md §3.
type Policy struct {
	Role                wsframe.Role
	MaxMessageSize      uint64 // 0 = unlimited
	MaxFramePayloadSize uint64 // 0 = unlimited
	IdleTimeout         time.Duration
	CloseTimeout        time.Duration

	// MaxOutboundQueueBytes, when non-zero, makes Sender.Send* fail with a
	// backpressure error instead of blocking (spec.md §5 backpressure).
	MaxOutboundQueueBytes uint64

	// NumaNode records the NUMA node configured for this connection; -1
	// means "system default". Conn does not read it: the Pool and Executor
	// a connection uses are whatever the caller assigns to those fields.
	NumaNode int

	// MetricsNamespace records the Prometheus namespace configured for this
	// connection. Conn registers no collectors and does not read it;
	// wsmetrics.Collector takes its namespace from wsmetrics.WithNamespace.
	MetricsNamespace string

	// Pool, when set, supplies inbound frame payload buffers (wired to the
	// parser's PayloadAllocator) and reclaims them once the connection is
	// done with each frame (see bufpool.Pool).
	Pool PayloadPool

	// Timers is the shared deadline scheduler idle/close timeouts are
	// armed on (spec.md §5: "scheduled on a shared timer wheel"). When nil,
	// a Conn starts and owns a private wsexec.TimerWheel for its own
	// lifetime; callers running many connections should share one wheel
	// across them instead (see cmd/wsctl/serve.go).
	Timers *wsexec.TimerWheel

	// Executor, when set, runs this connection's recv and write loops as
	// submitted tasks on the shared worker pool (spec.md §5: "multiple
	// connections run in parallel across a shared executor") instead of
	// each spawning its own two bare goroutines.
	Executor *wsexec.Executor
}

// PayloadPool is the subset of bufpool.Pool a Conn needs; kept as a local
// interface so wsconn does not import bufpool (avoiding a dependency a
// caller who supplies no pool has no reason to pull in).
type PayloadPool interface {
	Get(n uint64) []byte
	Put(b []byte)
}

// DefaultPolicy returns sane defaults for role, with no size limits, a 30s
// idle timeout and a 5s close timeout.
func DefaultPolicy(role wsframe.Role) Policy {
	return Policy{
		Role:             role,
		IdleTimeout:      30 * time.Second,
		CloseTimeout:     5 * time.Second,
		NumaNode:         -1,
		MetricsNamespace: "wscore",
	}
}
