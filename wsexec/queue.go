// File: wsexec/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// lockFreeQueue is the Vyukov MPMC bounded ring buffer from the teacher's
// core/concurrency package, generalized here to hold connection-actor tasks
// instead of arbitrary TaskFunc values: one queue per worker, contended by
// every goroutine submitting work to that worker plus the worker itself.

package wsexec

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type cell struct {
	sequence atomic.Uint64
	data     Task
}

// head and tail are padded to their own cache line (via x/sys/cpu's
// architecture-aware CacheLinePad) so the producer and consumer sides of
// the ring stop false-sharing one cache line under contention.
type lockFreeQueue struct {
	head uint64
	_    cpu.CacheLinePad
	tail uint64
	_    cpu.CacheLinePad
	mask  uint64
	cells []cell
}

func newLockFreeQueue(capacity int) *lockFreeQueue {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &lockFreeQueue{
		mask:  uint64(size - 1),
		cells: make([]cell, size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

func (q *lockFreeQueue) Enqueue(val Task) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		index := tail & q.mask
		c := &q.cells[index]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = val
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false // full
		default:
			// tail moved under us, retry
		}
	}
}

func (q *lockFreeQueue) Dequeue() (Task, bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		index := head & q.mask
		c := &q.cells[index]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				item := c.data
				c.data = nil
				c.sequence.Store(head + q.mask + 1)
				return item, true
			}
		case dif < 0:
			return nil, false // empty
		default:
			// head moved under us, retry
		}
	}
}
