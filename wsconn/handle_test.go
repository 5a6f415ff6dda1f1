// File: wsconn/handle_test.go
package wsconn

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/wscore/wserr"
)

func TestSendHandle_AwaitSuccess(t *testing.T) {
	h := newSendHandle()
	go h.complete(nil)
	if err := h.Await(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !h.IsDone() {
		t.Fatal("expected IsDone true after completion")
	}
}

func TestSendHandle_AwaitFailure(t *testing.T) {
	h := newSendHandle()
	cause := wserr.ErrConnectionDone
	go h.complete(cause)
	if err := h.Await(); err != cause {
		t.Fatalf("expected %v, got %v", cause, err)
	}
}

func TestSendHandle_CompleteIsIdempotent(t *testing.T) {
	h := newSendHandle()
	h.complete(nil)
	h.complete(wserr.ErrTimeout) // must be a no-op; first settle wins
	if err := h.Await(); err != nil {
		t.Fatalf("expected first completion (nil) to win, got %v", err)
	}
}

func TestSendHandle_CancelBeforeWrite(t *testing.T) {
	h := newSendHandle()
	cancelled := false
	h.cancelFn = func() bool { cancelled = true; return true }

	if !h.Cancel(false) {
		t.Fatal("expected cancel to succeed")
	}
	if !cancelled {
		t.Fatal("expected cancelFn to be invoked")
	}
	if !h.IsCancelled() {
		t.Fatal("expected IsCancelled true")
	}
	if err := h.Await(); err != wserr.ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSendHandle_CancelFailsOnceWriting(t *testing.T) {
	h := newSendHandle()
	h.cancelFn = func() bool { return false } // simulates writer already started

	if h.Cancel(true) {
		t.Fatal("expected cancel to fail once write started")
	}
	if h.IsCancelled() {
		t.Fatal("expected IsCancelled false")
	}
}

func TestSendHandle_CancelFailsAfterSettled(t *testing.T) {
	h := newSendHandle()
	h.complete(nil)
	if h.Cancel(false) {
		t.Fatal("expected cancel to fail on already-settled handle")
	}
}

func TestSendHandle_AwaitContextCancelled(t *testing.T) {
	h := newSendHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.AwaitContext(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSendHandle_AwaitDeadlineTimesOut(t *testing.T) {
	h := newSendHandle()
	if err := h.AwaitDeadline(10 * time.Millisecond); err != wserr.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
