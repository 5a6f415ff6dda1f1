// File: wsconn/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is the connection actor: a single-connection cooperative state
// machine tying together the parser (C2), aggregator (C5), state machine
// (C6) and send pipeline (C7) around one transport, per spec.md §5. It is
// grounded on the teacher's protocol/connection.go recv/send loop pair,
// generalized from a channel-fed frame relay into the full RFC 6455
// close/fragmentation/error semantics this spec requires.

package wsconn

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/momentics/wscore/wsexec"
	"github.com/momentics/wscore/wsframe"
	"github.com/momentics/wscore/wsmsg"
	"github.com/momentics/wscore/wserr"
)

// NetConn is the byte-oriented duplex a Conn rides on: typically a TCP
// socket after the HTTP Upgrade handshake has already completed (the
// handshake itself is wshandshake's concern, external to this package per
// spec.md §1).
type NetConn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// Callbacks groups the collaborator-facing events of spec.md §6. Any nil
// callback is simply not invoked.
type Callbacks struct {
	OnMessage func(payload []byte, kind wsmsg.Kind)
	OnPing    func(payload []byte)
	OnPong    func(payload []byte)
	OnClose   func(code uint16, reason string)
	OnError   func(cause error)

	// AutoPong, when true, makes Conn answer every inbound PING with a PONG
	// carrying the same payload without application involvement (spec.md
	// §6). It is false in the zero value: a Callbacks that leaves it unset
	// gets no automatic PONG.
	AutoPong bool
}

// Conn is one WebSocket connection: owns its parser state, aggregator
// buffers, state machine, and outbound queue exclusively (spec.md §3
// Ownership). Not safe for concurrent use except through its own Send*/
// RequestClose methods and the Callbacks it invokes.
type Conn struct {
	policy    Policy
	transport NetConn
	parser    *wsframe.Parser
	agg       *wsmsg.Aggregator
	sender    *Sender
	cb        Callbacks

	stateMu sync.Mutex
	state   State

	stop      chan struct{}
	stopOnce  sync.Once
	writerErr chan error

	timers     *wsexec.TimerWheel
	ownsTimers bool
	closeTimer *wsexec.TimerHandle
	idleTimer  *wsexec.TimerHandle

	errorReported atomic.Bool
	closeReported atomic.Bool

	framesReceived atomic.Int64
	framesSent     atomic.Int64
	bytesReceived  atomic.Int64
	bytesSent      atomic.Int64
}

// Stats is a snapshot of connection traffic counters, used by the debug
// endpoint (see wsconn/stats.go and wshandshake.Registry).
type Stats struct {
	FramesReceived int64  `json:"frames_received"`
	FramesSent     int64  `json:"frames_sent"`
	BytesReceived  int64  `json:"bytes_received"`
	BytesSent      int64  `json:"bytes_sent"`
	State          string `json:"state"`
}

// Snapshot returns the current traffic counters and state.
func (c *Conn) Snapshot() Stats {
	return Stats{
		FramesReceived: c.framesReceived.Load(),
		FramesSent:     c.framesSent.Load(),
		BytesReceived:  c.bytesReceived.Load(),
		BytesSent:      c.bytesSent.Load(),
		State:          c.State().String(),
	}
}

// New constructs a Conn bound to transport with the given policy, masker
// (only meaningful when policy.Role is CLIENT), and callbacks. Call Start
// to begin the recv/send loops.
func New(transport NetConn, policy Policy, masker wsframe.Masker, cb Callbacks) *Conn {
	parser := wsframe.NewParser(policy.Role, policy.MaxFramePayloadSize)
	if policy.Pool != nil {
		parser.Allocator = policy.Pool.Get
	}
	timers, ownsTimers := policy.Timers, false
	if timers == nil {
		timers, ownsTimers = wsexec.NewTimerWheel(), true
	}
	c := &Conn{
		policy:     policy,
		transport:  transport,
		parser:     parser,
		agg:        wsmsg.NewAggregator(policy.MaxMessageSize),
		sender:     NewSender(transport, policy.Role, masker, policy.MaxOutboundQueueBytes),
		cb:         cb,
		state:      StateOpen,
		stop:       make(chan struct{}),
		writerErr:  make(chan error, 1),
		timers:     timers,
		ownsTimers: ownsTimers,
	}
	c.sender.onFrameSent = func(n int) {
		c.framesSent.Add(1)
		c.bytesSent.Add(int64(n))
	}
	return c
}

// SetCallbacks replaces the connection's callback set. Intended for use
// before Start, when a caller needs conn itself in scope to build its
// OnMessage/OnClose closures (see wshandshake.Upgrader).
func (c *Conn) SetCallbacks(cb Callbacks) {
	c.cb = cb
}

// Start launches the receive loop and the send pipeline's writer loop. When
// policy.Executor is set, both loops run as submitted tasks on the shared
// worker pool instead of spawning their own bare goroutines (spec.md §5);
// a Submit failure (pool closed or its queues full) falls back to a plain goroutine so a
// connection is never silently dropped.
func (c *Conn) Start() {
	c.runLoop(c.writerLoop)
	c.runLoop(c.recvLoop)
	if c.policy.IdleTimeout > 0 {
		c.resetIdleTimer()
	}
}

func (c *Conn) runLoop(loop func()) {
	if c.policy.Executor != nil {
		if err := c.policy.Executor.Submit(loop); err == nil {
			return
		}
	}
	go loop()
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// SendText enqueues a TEXT message. Refused once a CLOSE has been sent.
func (c *Conn) SendText(payload []byte, fragmentThreshold uint64) (*SendHandle, error) {
	if c.sender.RejectDataFrames() {
		return nil, wserr.ErrClosedLocally
	}
	return c.sender.SendText(payload, fragmentThreshold)
}

// SendBinary enqueues a BINARY message. Refused once a CLOSE has been sent.
func (c *Conn) SendBinary(payload []byte, fragmentThreshold uint64) (*SendHandle, error) {
	if c.sender.RejectDataFrames() {
		return nil, wserr.ErrClosedLocally
	}
	return c.sender.SendBinary(payload, fragmentThreshold)
}

// SendPing enqueues a PING. PING/PONG remain permitted even after a CLOSE
// has been sent, until the transport actually closes (spec.md §4.4).
func (c *Conn) SendPing(payload []byte) (*SendHandle, error) {
	return c.sender.SendPing(payload)
}

// SendPong enqueues a PONG.
func (c *Conn) SendPong(payload []byte) (*SendHandle, error) {
	return c.sender.SendPong(payload)
}

// RequestClose begins the close handshake from the application side (OPEN
// -> CLOSING_LOCAL in spec.md §4.4's transition table).
func (c *Conn) RequestClose(code uint16, reason string) (*SendHandle, error) {
	c.stateMu.Lock()
	if c.state != StateOpen {
		c.stateMu.Unlock()
		return c.sender.SendClose(code, reason)
	}
	c.state = StateClosingLocal
	c.stateMu.Unlock()

	handle, err := c.sender.SendClose(code, reason)
	if err != nil {
		return nil, err
	}
	c.armCloseTimer()
	return handle, nil
}

func (c *Conn) armCloseTimer() {
	if c.policy.CloseTimeout <= 0 {
		return
	}
	c.closeTimer = c.timers.After(c.policy.CloseTimeout, func() {
		c.terminate(wsframe.CloseAbnormalClosure, "", nil)
	})
}

func (c *Conn) resetIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer.Cancel()
	}
	c.idleTimer = c.timers.After(c.policy.IdleTimeout, func() {
		c.failProtocol(&wserr.Error{Kind: wserr.CodeTimeout, CloseCode: wsframe.CloseGoingAway, Message: "idle timeout"})
	})
}

// recvLoop reads transport bytes into the parser, dispatches control
// frames to the state machine and aggregated messages to the application,
// until the transport errs, EOFs, or the connection is told to stop.
func (c *Conn) recvLoop() {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		n, err := c.transport.Read(buf)
		if n > 0 {
			if c.policy.IdleTimeout > 0 {
				c.resetIdleTimer()
			}
			frames, ferr := c.parser.Feed(buf[:n])
			for _, f := range frames {
				if !c.handleFrame(f) {
					return
				}
			}
			if ferr != nil {
				if pe, ok := ferr.(*wsframe.ProtocolError); ok {
					c.failProtocol(&wserr.Error{Kind: wserr.CodeProtocolViolation, CloseCode: pe.Code, Message: pe.Reason})
				} else {
					c.failProtocol(&wserr.Error{Kind: wserr.CodeInternal, CloseCode: wsframe.CloseInternalServerErr, Message: ferr.Error()})
				}
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				c.terminate(wsframe.CloseAbnormalClosure, "", nil)
			} else {
				c.reportError(&wserr.Error{Kind: wserr.CodeTransportFailure, Message: "transport read failed", Cause: err})
				c.terminate(wsframe.CloseAbnormalClosure, "", err)
			}
			return
		}
	}
}

// handleFrame dispatches one parsed frame to the aggregator or the control
// handler, returning false if the connection has been torn down and the
// recv loop should stop.
func (c *Conn) handleFrame(f wsframe.Frame) bool {
	c.framesReceived.Add(1)
	c.bytesReceived.Add(int64(f.PayloadLen))

	if f.Opcode.IsControl() {
		ok := c.handleControl(f)
		c.releasePayload(f.Payload)
		return ok
	}

	msg, ctrl, err := c.agg.Feed(f)
	c.releasePayload(f.Payload)
	if err != nil {
		if pe, ok := err.(*wsmsg.ProtocolError); ok {
			c.failProtocol(&wserr.Error{Kind: wserr.CodeProtocolViolation, CloseCode: pe.Code, Message: pe.Reason})
		} else {
			c.failProtocol(&wserr.Error{Kind: wserr.CodeInternal, CloseCode: wsframe.CloseInternalServerErr, Message: err.Error()})
		}
		return false
	}
	if ctrl != nil {
		return c.handleControl(*ctrl)
	}
	if msg != nil && c.cb.OnMessage != nil {
		c.cb.OnMessage(msg.Payload, msg.Kind)
	}
	return true
}

// releasePayload returns a frame payload to policy.Pool once every
// consumer of this frame (the control handler or the aggregator, both of
// which copy what they need synchronously before returning) is done with
// it. A no-op when no pool was configured.
func (c *Conn) releasePayload(p []byte) {
	if c.policy.Pool != nil && p != nil {
		c.policy.Pool.Put(p)
	}
}

// handleControl implements the PING/PONG/CLOSE branches of spec.md §4.4's
// transition table; returns false once the connection has fully closed.
func (c *Conn) handleControl(f wsframe.Frame) bool {
	switch f.Opcode {
	case wsframe.OpPing:
		if c.cb.OnPing != nil {
			c.cb.OnPing(f.Payload)
		}
		if c.cb.AutoPong {
			c.sender.SendPong(f.Payload)
		}
		return true

	case wsframe.OpPong:
		if c.cb.OnPong != nil {
			c.cb.OnPong(f.Payload)
		}
		return true

	case wsframe.OpClose:
		info := DecodeCloseInfo(f.Payload)
		c.agg.Abandon() // DESIGN.md open question (a): abandon any in-flight fragmented message
		c.onPeerClose(info)
		return false

	default:
		return true
	}
}

// onPeerClose implements the OPEN/CLOSING_LOCAL -> CLOSED transitions that
// begin with receiving a CLOSE frame.
func (c *Conn) onPeerClose(info CloseInfo) {
	c.stateMu.Lock()
	prior := c.state
	c.state = StateClosingRemote
	c.stateMu.Unlock()

	echoCode := info.Code
	if echoCode == wsframe.CloseNoStatusRcvd || wsframe.IsSyntheticOnly(echoCode) {
		echoCode = wsframe.CloseNormalClosure
	}

	if prior == StateClosingLocal {
		// We already sent our own CLOSE; the handshake is complete now.
		if c.closeTimer != nil {
			c.closeTimer.Cancel()
		}
		c.terminate(info.Code, info.Reason, nil)
		return
	}

	handle, err := c.sender.SendClose(echoCode, info.Reason)
	if err == nil && handle != nil {
		go func() {
			handle.Await()
			c.terminate(info.Code, info.Reason, nil)
		}()
		return
	}
	c.terminate(info.Code, info.Reason, nil)
}

// failProtocol implements the OPEN -> CLOSING_LOCAL "protocol error"
// transition: enqueue CLOSE(code) and report the error, without yet
// tearing down the transport (the peer's echo, or the close timeout, does
// that).
func (c *Conn) failProtocol(e *wserr.Error) {
	c.stateMu.Lock()
	if c.state != StateOpen {
		c.stateMu.Unlock()
		return
	}
	c.state = StateClosingLocal
	c.stateMu.Unlock()

	c.reportError(e)
	c.sender.SendClose(e.CloseCode, e.Message)
	c.armCloseTimer()
}

func (c *Conn) reportError(e *wserr.Error) {
	if c.errorReported.CompareAndSwap(false, true) && c.cb.OnError != nil {
		c.cb.OnError(e)
	}
}

// terminate drives the final transition to CLOSED: stops timers, closes
// the transport, fails any still-pending sends, and invokes OnClose
// exactly once.
func (c *Conn) terminate(code uint16, reason string, transportCause error) {
	c.stopOnce.Do(func() {
		c.setState(StateClosed)
		if c.closeTimer != nil {
			c.closeTimer.Cancel()
		}
		if c.idleTimer != nil {
			c.idleTimer.Cancel()
		}
		if c.ownsTimers {
			c.timers.Close()
		}
		close(c.stop)
		c.transport.Close()

		if transportCause != nil && !c.errorReported.Load() {
			c.reportError(&wserr.Error{Kind: wserr.CodeTransportFailure, Message: "transport failed", Cause: transportCause})
		}

		if c.closeReported.CompareAndSwap(false, true) && c.cb.OnClose != nil {
			c.cb.OnClose(code, reason)
		}
	})
}

func (c *Conn) writerLoop() {
	err := c.sender.Run(c.stop)
	if err != nil {
		c.terminate(wsframe.CloseAbnormalClosure, "", err)
	}
}
