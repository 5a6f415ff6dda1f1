// File: bufpool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package bufpool is a size-classed byte-slice pool, generalized from the
// teacher's pool.baseBufferPool: callers ask for a buffer of at least n
// bytes and return it when done, avoiding a fresh allocation per inbound
// frame payload or outbound wire encode. Unlike the teacher's pool package
// it carries no NUMA-aware allocation backend or platform build tags —
// wsconn's Policy.NumaNode only selects which Pool instance a connection
// draws from (see DESIGN.md for why the rest of pool/ was not carried
// over).
package bufpool
