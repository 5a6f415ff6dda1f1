// File: wsconn/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SendHandle is the Go shape of the source's FrameBytes/JavaxWebsocketFuture
// pair (see original_source jetty-websocket JavaxWebsocketFuture.java): a
// scoped value guaranteed to complete exactly once (success, failure, or
// cancel), with cooperative, pre-write-only cancellation.

package wsconn

import (
	"context"
	"sync"
	"time"

	"github.com/momentics/wscore/wserr"
)

// SendHandle is returned by every Sender.Send* call.
type SendHandle struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	settled   bool
	cancelled bool
	cancelFn  func() bool
}

func newSendHandle() *SendHandle {
	return &SendHandle{done: make(chan struct{})}
}

// Await blocks until the send completes, returning nil on success or the
// failure cause otherwise.
func (h *SendHandle) Await() error {
	<-h.done
	return h.err
}

// AwaitContext blocks until the send completes or ctx is done.
func (h *SendHandle) AwaitContext(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitDeadline blocks until the send completes or d elapses.
func (h *SendHandle) AwaitDeadline(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.done:
		return h.err
	case <-timer.C:
		return wserr.ErrTimeout
	}
}

// Cancel removes the send from the outbound queue if no byte of it has
// reached the transport yet, completing the handle as cancelled. Returns
// false if any byte has already been written (the send must then complete
// or fail naturally) or if the send already settled.
//
// mayInterrupt is accepted for API symmetry with the source's
// Future.cancel(boolean) but is never honored mid-write: aborting a
// partially written frame would desync the peer's parser (see DESIGN.md
// open question (c)).
func (h *SendHandle) Cancel(mayInterrupt bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled {
		return false
	}
	if h.cancelFn == nil || !h.cancelFn() {
		return false
	}
	h.cancelled = true
	h.settleLocked(wserr.ErrCancelled)
	return true
}

// IsDone reports whether the handle has settled (success, failure, or
// cancel).
func (h *SendHandle) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether the handle settled via Cancel.
func (h *SendHandle) IsCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// complete is called exactly once by the writer (success or failure).
func (h *SendHandle) complete(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked(err)
}

func (h *SendHandle) settleLocked(err error) {
	if h.settled {
		return
	}
	h.settled = true
	h.err = err
	close(h.done)
}
