// File: wsexec/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package wsexec is the shared executor connections run across: a fixed
// worker pool draining per-worker lock-free queues with a global-queue
// fallback, plus a timer wheel for the idle/close deadlines wsconn.Conn
// arms per spec.md §5 ("multiple connections run in parallel across a
// shared executor").
package wsexec
