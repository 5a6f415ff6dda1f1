// File: bufpool/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bufpool

import "sync"

// sizeClasses mirrors the teacher's fixed power-of-two bucketing, trading a
// little internal fragmentation for O(1) class lookup.
var sizeClasses = [...]int{256, 1024, 4096, 16384, 65536}

// Pool hands out byte slices sized to the smallest size class that fits the
// request, falling back to a fresh allocation above the largest class. One
// Pool is typically shared by every connection on a given NUMA node
// (wsconn.Policy.NumaNode).
type Pool struct {
	classes [len(sizeClasses)]sync.Pool
	gets    [len(sizeClasses) + 1]int64
	mu      sync.Mutex
}

// New constructs an empty Pool; buffers are created lazily on first Get.
func New() *Pool {
	p := &Pool{}
	for i, sz := range sizeClasses {
		sz := sz
		p.classes[i].New = func() any {
			b := make([]byte, sz)
			return &b
		}
	}
	return p
}

func classFor(n uint64) int {
	for i, sz := range sizeClasses {
		if n <= uint64(sz) {
			return i
		}
	}
	return -1
}

// Get returns a slice of length n, drawn from the pool when n fits a size
// class or freshly allocated otherwise. Satisfies wsframe.PayloadAllocator.
func (p *Pool) Get(n uint64) []byte {
	idx := classFor(n)
	if idx < 0 {
		p.mu.Lock()
		p.gets[len(sizeClasses)]++
		p.mu.Unlock()
		return make([]byte, n)
	}
	p.mu.Lock()
	p.gets[idx]++
	p.mu.Unlock()
	buf := p.classes[idx].Get().(*[]byte)
	return (*buf)[:n]
}

// Put returns b to the pool for reuse, identified by its capacity. Slices
// not matching a size class's exact capacity (oversize allocations, or
// slices resulting from append growth) are simply dropped.
func (p *Pool) Put(b []byte) {
	c := cap(b)
	for i, sz := range sizeClasses {
		if c == sz {
			full := b[:sz]
			p.classes[i].Put(&full)
			return
		}
	}
}

// Stats reports the lifetime Get count per size class, indexed the same as
// sizeClasses; Stats()[len(sizeClasses)] counts oversize (non-pooled) gets.
func (p *Pool) Stats() [len(sizeClasses) + 1]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets
}
