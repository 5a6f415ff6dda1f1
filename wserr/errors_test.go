// File: wserr/errors_test.go
package wserr_test

import (
	"errors"
	"testing"

	"github.com/momentics/wscore/wserr"
)

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("underlying")
	e := wserr.Wrap(wserr.CodeTransportFailure, 1006, "write failed", cause)

	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if e.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestError_NewHasNoCause(t *testing.T) {
	e := wserr.New(wserr.CodeProtocolViolation, 1002, "bad frame")
	if e.Unwrap() != nil {
		t.Fatal("expected nil Unwrap for New()")
	}
}

func TestCode_String(t *testing.T) {
	cases := map[wserr.Code]string{
		wserr.CodeProtocolViolation: "protocol_violation",
		wserr.CodeMessageTooLarge:   "message_too_large",
		wserr.CodeInvalidUTF8:       "invalid_utf8",
		wserr.CodeTransportFailure:  "transport_failure",
		wserr.CodePolicyRejected:    "policy_rejected",
		wserr.CodeClosedLocally:     "closed_locally",
		wserr.CodeClosedByPeer:      "closed_by_peer",
		wserr.CodeCancelled:         "cancelled",
		wserr.CodeTimeout:           "timeout",
		wserr.CodeInternal:          "internal",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("Code(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		wserr.ErrCancelled,
		wserr.ErrClosedLocally,
		wserr.ErrClosedByPeer,
		wserr.ErrTimeout,
		wserr.ErrBackpressure,
		wserr.ErrConnectionDone,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %d unexpectedly matches sentinel %d", i, j)
			}
		}
	}
}
