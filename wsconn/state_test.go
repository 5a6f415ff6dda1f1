// File: wsconn/state_test.go
package wsconn

import "testing"

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateOpen:          "open",
		StateClosingLocal:  "closing_local",
		StateClosingRemote: "closing_remote",
		StateClosed:        "closed",
		State(99):          "state(99)",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
