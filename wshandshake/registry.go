// File: wshandshake/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry tracks live connections for the /debug/conns introspection
// endpoint, grounded on the teacher's control/metrics.go registry of
// active sessions (there keyed for Prometheus label cardinality, here for a
// plain JSON dump; wsmetrics keeps its own counters/gauges, fed from
// connection callbacks rather than from Conn.Snapshot).

package wshandshake

import (
	"net/http"
	"sync"

	"github.com/momentics/wscore/wsconn"
)

// Registry is a concurrency-safe set of live connections.
type Registry struct {
	mu    sync.Mutex
	conns map[*wsconn.Conn]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[*wsconn.Conn]struct{})}
}

func (reg *Registry) add(c *wsconn.Conn) {
	reg.mu.Lock()
	reg.conns[c] = struct{}{}
	reg.mu.Unlock()
}

func (reg *Registry) remove(c *wsconn.Conn) {
	reg.mu.Lock()
	delete(reg.conns, c)
	reg.mu.Unlock()
}

// Len reports the number of connections currently tracked.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.conns)
}

// CloseAll requests a graceful close of every tracked connection, for use
// during server shutdown (see cmd/wsctl's serve command).
func (reg *Registry) CloseAll(code uint16, reason string) {
	reg.mu.Lock()
	conns := make([]*wsconn.Conn, 0, len(reg.conns))
	for c := range reg.conns {
		conns = append(conns, c)
	}
	reg.mu.Unlock()

	for _, c := range conns {
		c.RequestClose(code, reason)
	}
}

// ServeHTTP writes a JSON array of every tracked connection's Stats
// snapshot, for mounting at e.g. /debug/conns.
func (reg *Registry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reg.mu.Lock()
	snaps := make([]wsconn.Stats, 0, len(reg.conns))
	for c := range reg.conns {
		snaps = append(snaps, c.Snapshot())
	}
	reg.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	body, err := marshalStats(snaps)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(body)
}
