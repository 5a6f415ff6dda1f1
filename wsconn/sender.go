// File: wsconn/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sender is the send pipeline (C7): a single outbound writer serializing
// frames from two priority classes (control > data), FIFO within each
// class, honoring the fragmentation/masking/close rules of spec.md §4.5.
// The outbound queues are the teacher's github.com/eapache/queue ring
// buffer, previously required in go.mod but never imported by any file in
// the teacher tree; this wires it into the one component of the engine
// that needed a plain FIFO.

package wsconn

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/wscore/wserr"
	"github.com/momentics/wscore/wsframe"
)

// Transport is the write side of the byte stream the send pipeline writes
// to; any net.Conn (or wsconn.NetConn) satisfies it.
type Transport interface {
	Write(p []byte) (int, error)
}

// outboundItem is one logical send: one or more frames (>1 only for a
// fragmented data message) sharing a single completion handle.
type outboundItem struct {
	frames [][]byte // pre-encoded wire bytes, one per fragment, in order
	handle *SendHandle
}

// Sender owns the outbound queues and the single writer goroutine's state.
// Not safe for concurrent use from multiple writer goroutines — exactly one
// Run loop drains it, matching the single-connection-actor model of
// spec.md §5.
type Sender struct {
	mu            sync.Mutex
	control       *queue.Queue
	data          *queue.Queue
	queuedBytes   uint64
	writing       *outboundItem
	notify        chan struct{}
	transport     Transport
	role          wsframe.Role
	masker        wsframe.Masker
	maxQueueBytes uint64

	closeMu     sync.Mutex // serializes SendClose so only one CLOSE is enqueued
	closeHandle *SendHandle
	stopped     bool

	// onFrameSent, when set, is called with each frame's wire length after
	// a successful transport write (wsconn.Conn wires this to its traffic
	// counters).
	onFrameSent func(n int)
}

// NewSender constructs a Sender bound to transport, masking outbound
// frames when role is CLIENT (server-originated frames are never masked
// per spec.md §4.2).
func NewSender(transport Transport, role wsframe.Role, masker wsframe.Masker, maxQueueBytes uint64) *Sender {
	return &Sender{
		control:       queue.New(),
		data:          queue.New(),
		notify:        make(chan struct{}, 1),
		transport:     transport,
		role:          role,
		masker:        masker,
		maxQueueBytes: maxQueueBytes,
	}
}

func (s *Sender) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// encodeOne serializes a single frame, applying masking when role is
// CLIENT (the generator itself never masks; the pipeline decides when to).
func (s *Sender) encodeOne(fin bool, opcode wsframe.Opcode, payload []byte) ([]byte, error) {
	masked := s.role == wsframe.RoleClient
	var key [4]byte
	if masked {
		key = s.masker.NextKey()
	}
	return wsframe.Encode(nil, fin, false, false, false, opcode, payload, masked, key)
}

// enqueueControl pushes a single-frame control item (PING/PONG/CLOSE).
func (s *Sender) enqueueControl(opcode wsframe.Opcode, payload []byte) (*SendHandle, error) {
	wire, err := s.encodeOne(true, opcode, payload)
	if err != nil {
		return nil, err
	}
	item := &outboundItem{frames: [][]byte{wire}, handle: newSendHandle()}
	return s.push(s.control, item)
}

// enqueueData pushes a (possibly fragmented) data-message item.
func (s *Sender) enqueueData(opcode wsframe.Opcode, payload []byte, fragmentThreshold uint64) (*SendHandle, error) {
	var frames [][]byte
	if fragmentThreshold == 0 || uint64(len(payload)) <= fragmentThreshold {
		wire, err := s.encodeOne(true, opcode, payload)
		if err != nil {
			return nil, err
		}
		frames = [][]byte{wire}
	} else {
		for off := uint64(0); off < uint64(len(payload)); off += fragmentThreshold {
			end := off + fragmentThreshold
			if end > uint64(len(payload)) {
				end = uint64(len(payload))
			}
			fin := end == uint64(len(payload))
			op := opcode
			if off > 0 {
				op = wsframe.OpContinuation
			}
			wire, err := s.encodeOne(fin, op, payload[off:end])
			if err != nil {
				return nil, err
			}
			frames = append(frames, wire)
		}
	}
	item := &outboundItem{frames: frames, handle: newSendHandle()}
	return s.push(s.data, item)
}

func itemBytes(item *outboundItem) uint64 {
	var n uint64
	for _, f := range item.frames {
		n += uint64(len(f))
	}
	return n
}

func (s *Sender) push(q *queue.Queue, item *outboundItem) (*SendHandle, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, wserr.ErrConnectionDone
	}
	size := itemBytes(item)
	if s.maxQueueBytes > 0 && s.queuedBytes+size > s.maxQueueBytes {
		s.mu.Unlock()
		return nil, wserr.ErrBackpressure
	}
	s.queuedBytes += size
	item.handle.cancelFn = func() bool { return s.cancel(q, item) }
	q.Add(item)
	s.mu.Unlock()
	s.wake()
	return item.handle, nil
}

// cancel removes item from q unless the writer has already begun sending
// it (spec.md §4.5 cancellation semantics).
func (s *Sender) cancel(q *queue.Queue, item *outboundItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writing == item {
		return false
	}
	n := q.Length()
	found := false
	kept := make([]*outboundItem, 0, n)
	for i := 0; i < n; i++ {
		it := q.Remove().(*outboundItem)
		if it == item && !found {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	for _, it := range kept {
		q.Add(it)
	}
	if found {
		s.queuedBytes -= itemBytes(item)
	}
	return found
}

// SendText enqueues a TEXT message, splitting into fragments of
// fragmentThreshold bytes each when non-zero and exceeded.
func (s *Sender) SendText(payload []byte, fragmentThreshold uint64) (*SendHandle, error) {
	return s.enqueueData(wsframe.OpText, payload, fragmentThreshold)
}

// SendBinary enqueues a BINARY message.
func (s *Sender) SendBinary(payload []byte, fragmentThreshold uint64) (*SendHandle, error) {
	return s.enqueueData(wsframe.OpBinary, payload, fragmentThreshold)
}

// SendPing enqueues a PING control frame.
func (s *Sender) SendPing(payload []byte) (*SendHandle, error) {
	return s.enqueueControl(wsframe.OpPing, payload)
}

// SendPong enqueues a PONG control frame.
func (s *Sender) SendPong(payload []byte) (*SendHandle, error) {
	return s.enqueueControl(wsframe.OpPong, payload)
}

// SendClose enqueues the connection's one and only CLOSE frame. Subsequent
// calls are idempotent: they return the handle from the first call without
// enqueuing anything further (spec.md §4.5).
func (s *Sender) SendClose(code uint16, reason string) (*SendHandle, error) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	s.mu.Lock()
	if s.closeHandle != nil {
		h := s.closeHandle
		s.mu.Unlock()
		return h, nil
	}
	s.mu.Unlock()

	payload := EncodeCloseInfo(code, reason)
	handle, err := s.enqueueControl(wsframe.OpClose, payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closeHandle == nil {
		s.closeHandle = handle
		s.mu.Unlock()
		return handle, nil
	}
	existing := s.closeHandle
	s.mu.Unlock()
	return existing, nil
}

// RejectDataFrames reports whether new data-frame sends must be refused:
// true once a CLOSE has been enqueued, per spec.md §4.4 invariants.
func (s *Sender) RejectDataFrames() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeHandle != nil
}

// next pops the next item to write, preferring control over data, or
// blocks on s.notify until one is available or stop is closed.
func (s *Sender) next(stop <-chan struct{}) *outboundItem {
	for {
		s.mu.Lock()
		if s.control.Length() > 0 {
			item := s.control.Remove().(*outboundItem)
			s.queuedBytes -= itemBytes(item)
			s.writing = item
			s.mu.Unlock()
			return item
		}
		if s.data.Length() > 0 {
			item := s.data.Remove().(*outboundItem)
			s.queuedBytes -= itemBytes(item)
			s.writing = item
			s.mu.Unlock()
			return item
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
			continue
		case <-stop:
			return nil
		}
	}
}

// Run drains the outbound queues until stop is closed, writing each item's
// frames to the transport in order and completing its handle. Between the
// fragments of a data item it interleaves any control frame that has since
// been enqueued, per spec.md §4.5 ordering contract.
func (s *Sender) Run(stop <-chan struct{}) error {
	for {
		item := s.next(stop)
		if item == nil {
			s.shutdown(wserr.ErrConnectionDone)
			return nil
		}

		var writeErr error
		for i, frame := range item.frames {
			if _, err := s.transport.Write(frame); err != nil {
				writeErr = err
				break
			}
			if s.onFrameSent != nil {
				s.onFrameSent(len(frame))
			}
			if i < len(item.frames)-1 {
				if err := s.interleaveControl(); err != nil {
					writeErr = err
					break
				}
			}
		}

		s.mu.Lock()
		s.writing = nil
		s.mu.Unlock()

		item.handle.complete(writeErr)
		if writeErr != nil {
			s.shutdown(wserr.Wrap(wserr.CodeTransportFailure, 0, "send failed", writeErr))
			return writeErr
		}
	}
}

// shutdown marks the sender stopped and fails every still-queued send with
// cause, per spec.md §5 "per-connection shutdown cancels all pending send
// handles with a connection-closed cause."
func (s *Sender) shutdown(cause error) {
	s.mu.Lock()
	s.stopped = true
	var pending []*outboundItem
	for s.control.Length() > 0 {
		pending = append(pending, s.control.Remove().(*outboundItem))
	}
	for s.data.Length() > 0 {
		pending = append(pending, s.data.Remove().(*outboundItem))
	}
	s.queuedBytes = 0
	s.mu.Unlock()

	for _, item := range pending {
		item.handle.complete(cause)
	}
}

// interleaveControl writes out every control item currently queued, called
// between fragments of an in-flight data message.
func (s *Sender) interleaveControl() error {
	for {
		s.mu.Lock()
		if s.control.Length() == 0 {
			s.mu.Unlock()
			return nil
		}
		item := s.control.Remove().(*outboundItem)
		s.queuedBytes -= itemBytes(item)
		s.writing = item
		s.mu.Unlock()

		var writeErr error
		for _, frame := range item.frames {
			if _, err := s.transport.Write(frame); err != nil {
				writeErr = err
				break
			}
			if s.onFrameSent != nil {
				s.onFrameSent(len(frame))
			}
		}

		s.mu.Lock()
		s.writing = nil
		s.mu.Unlock()
		item.handle.complete(writeErr)
		if writeErr != nil {
			return writeErr
		}
	}
}
