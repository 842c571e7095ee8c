// Package buffer implements the fixed ring of sample buffers that hands
// decimated audio from the acquisition goroutine to the storage loop.
//
// The producer fills the buffer under the write cursor and publishes it by
// advancing the cursor. The consumer reads published buffers in order and
// releases them. Cursors are monotonic counts, a buffer index is the count
// modulo the number of buffers.
package buffer

import (
	"sync/atomic"
)

const (
	// DefaultBuffers is the number of buffers in a pool.
	DefaultBuffers = 8
	// DefaultBufferSamples is the number of samples per buffer.
	DefaultBufferSamples = 16384
)

// Pool is a single producer, single consumer ring of equally sized buffers
// carved from one contiguous slice.
//
// At most Buffers()-1 buffers are ever published: the producer never
// advances onto a buffer the consumer has not released, and the consumer
// never sees the buffer under the write cursor.
type Pool struct {
	data    []int16
	buffers [][]int16

	written atomic.Uint64 // Published buffers, advanced by the producer
	read    atomic.Uint64 // Released buffers, advanced by the consumer
	overrun atomic.Bool

	offset int // Fill level of the write buffer, producer owned

	ready chan struct{}
}

// New creates a pool of n buffers of size samples each.
func New(n, size int) *Pool {
	if n < 2 {
		n = 2
	}
	if size < 1 {
		size = 1
	}

	p := &Pool{
		data:    make([]int16, n*size),
		buffers: make([][]int16, n),
		ready:   make(chan struct{}, 1),
	}
	for i := range p.buffers {
		p.buffers[i] = p.data[i*size : (i+1)*size : (i+1)*size]
	}
	return p
}

// NewDefault creates a pool with DefaultBuffers buffers of DefaultBufferSamples.
func NewDefault() *Pool {
	return New(DefaultBuffers, DefaultBufferSamples)
}

// Buffers returns the number of buffers in the ring.
func (p *Pool) Buffers() int {
	return len(p.buffers)
}

// BufferSamples returns the capacity of one buffer in samples.
func (p *Pool) BufferSamples() int {
	return len(p.buffers[0])
}

// Write lets fill produce samples into the free tail of the write buffer.
// fill returns how many samples it wrote. A full buffer is published and
// the cursor moves to the next one; if that buffer has not been released
// the pool enters overrun and drops every later write.
//
// Write must only be called from the producer goroutine.
func (p *Pool) Write(fill func(dst []int16) int) {
	if p.overrun.Load() {
		return
	}

	buf := p.buffers[p.written.Load()%uint64(len(p.buffers))]
	n := fill(buf[p.offset:])
	p.offset += n
	if p.offset < len(buf) {
		return
	}

	written := p.written.Load()
	if written+1-p.read.Load() >= uint64(len(p.buffers)) {
		p.overrun.Store(true)
		p.notify()
		return
	}

	p.offset = 0
	p.written.Store(written + 1)
	p.notify()
}

func (p *Pool) notify() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// Overrun reports whether the producer caught up with the consumer.
func (p *Pool) Overrun() bool {
	return p.overrun.Load()
}

// Ready returns the number of published buffers not yet released.
func (p *Pool) Ready() int {
	return int(p.written.Load() - p.read.Load())
}

// Peek returns the oldest published buffer without releasing it.
func (p *Pool) Peek() ([]int16, bool) {
	read := p.read.Load()
	if p.written.Load() == read {
		return nil, false
	}
	return p.buffers[read%uint64(len(p.buffers))], true
}

// Release hands the oldest published buffer back to the producer.
func (p *Pool) Release() {
	if p.Ready() == 0 {
		return
	}
	p.read.Add(1)
}

// Wait returns a channel that is signalled after a buffer is published or
// an overrun occurs. Callers re-check Ready and Overrun after waking.
func (p *Pool) Wait() <-chan struct{} {
	return p.ready
}

// Published returns the number of buffers published since the last reset.
func (p *Pool) Published() uint64 {
	return p.written.Load()
}

// Reset empties the ring. The producer must not be running.
func (p *Pool) Reset() {
	p.written.Store(0)
	p.read.Store(0)
	p.overrun.Store(false)
	p.offset = 0
	select {
	case <-p.ready:
	default:
	}
}
