// File: wsmsg/aggregator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wsmsg

import (
	"fmt"

	"github.com/momentics/wscore/wsframe"
)

// Kind labels a whole message as TEXT or BINARY.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

// Message is a whole application message reassembled from one initial data
// frame plus zero or more CONTINUATION frames.
type Message struct {
	Kind    Kind
	Payload []byte
}

// ProtocolError mirrors wsframe.ProtocolError so callers can handle both
// parser-detected and aggregator-detected violations uniformly.
type ProtocolError struct {
	Code   uint16
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wsmsg: protocol error (close %d): %s", e.Code, e.Reason)
}

// Aggregator reassembles fragmented messages and passes control frames
// through untouched. One Aggregator belongs to exactly one connection's
// inbound path; it is not safe for concurrent use.
type Aggregator struct {
	MaxMessageSize uint64 // 0 = unlimited

	open        bool
	kind        Kind
	buf         []byte
	accumulated uint64
	utf8        incrementalUTF8
}

// NewAggregator constructs an Aggregator enforcing maxMessageSize (0 = no
// limit) on the accumulated payload of a fragmented message.
func NewAggregator(maxMessageSize uint64) *Aggregator {
	return &Aggregator{MaxMessageSize: maxMessageSize}
}

// Feed processes one parsed frame. Exactly one of the return values is
// non-nil on success: msg when a whole message just completed, ctrl when a
// control frame passed through. Both are nil when a data fragment was
// buffered but the message is not yet complete.
func (a *Aggregator) Feed(f wsframe.Frame) (msg *Message, ctrl *wsframe.Frame, err error) {
	if f.Opcode.IsControl() {
		return nil, &f, nil
	}

	switch {
	case !a.open:
		switch f.Opcode {
		case wsframe.OpText, wsframe.OpBinary:
			if err := a.begin(f); err != nil {
				return nil, nil, err
			}
			if f.Fin {
				return a.finish()
			}
			return nil, nil, nil
		case wsframe.OpContinuation:
			return nil, nil, &ProtocolError{Code: 1002, Reason: "continuation with no open message"}
		default:
			return nil, nil, &ProtocolError{Code: 1002, Reason: "unexpected opcode"}
		}

	default:
		switch f.Opcode {
		case wsframe.OpText, wsframe.OpBinary:
			return nil, nil, &ProtocolError{Code: 1002, Reason: "new message started while fragmented message open"}
		case wsframe.OpContinuation:
			if err := a.append(f); err != nil {
				return nil, nil, err
			}
			if f.Fin {
				return a.finish()
			}
			return nil, nil, nil
		default:
			return nil, nil, &ProtocolError{Code: 1002, Reason: "unexpected opcode"}
		}
	}
}

// Abandon discards any in-progress fragmented message, per the decision to
// drop partial messages when a CLOSE is received mid-fragment rather than
// deliver them (see DESIGN.md open question (a)).
func (a *Aggregator) Abandon() {
	a.open = false
	a.buf = nil
	a.accumulated = 0
	a.utf8 = incrementalUTF8{}
}

func (a *Aggregator) begin(f wsframe.Frame) error {
	a.open = true
	a.accumulated = 0
	a.utf8 = incrementalUTF8{}
	switch f.Opcode {
	case wsframe.OpText:
		a.kind = KindText
	case wsframe.OpBinary:
		a.kind = KindBinary
	}
	a.buf = a.buf[:0]
	return a.append(f)
}

func (a *Aggregator) append(f wsframe.Frame) error {
	if a.MaxMessageSize > 0 && a.accumulated+uint64(len(f.Payload)) > a.MaxMessageSize {
		a.Abandon()
		return &ProtocolError{Code: 1009, Reason: "message exceeds configured maximum size"}
	}
	if a.kind == KindText && !a.utf8.Write(f.Payload) {
		a.Abandon()
		return &ProtocolError{Code: 1007, Reason: "text message is not valid UTF-8"}
	}
	a.appendPayload(f.Payload)
	return nil
}

func (a *Aggregator) appendPayload(p []byte) {
	a.accumulated += uint64(len(p))
	a.buf = append(a.buf, p...)
}

func (a *Aggregator) finish() (*Message, *wsframe.Frame, error) {
	if a.kind == KindText && !a.utf8.Close() {
		a.Abandon()
		return nil, nil, &ProtocolError{Code: 1007, Reason: "text message ends mid-rune"}
	}
	msg := &Message{Kind: a.kind, Payload: a.buf}
	a.open = false
	a.buf = nil
	a.accumulated = 0
	a.utf8 = incrementalUTF8{}
	return msg, nil, nil
}
