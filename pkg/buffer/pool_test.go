package buffer

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillSequence writes up to chunk consecutive values starting at *next.
func fillSequence(next *int16, chunk int) func(dst []int16) int {
	return func(dst []int16) int {
		n := min(chunk, len(dst))
		for i := range n {
			dst[i] = *next
			*next++
		}
		return n
	}
}

func TestNew(t *testing.T) {
	p := NewDefault()

	assert.Equal(t, DefaultBuffers, p.Buffers())
	assert.Equal(t, DefaultBufferSamples, p.BufferSamples())
	assert.Equal(t, 0, p.Ready())

	_, ok := p.Peek()
	assert.False(t, ok)
}

func TestPool_BuffersAreContiguous(t *testing.T) {
	p := New(4, 8)

	for i := range p.buffers {
		assert.Len(t, p.buffers[i], 8)
		assert.Equal(t, 8, cap(p.buffers[i]))
		assert.Same(t, &p.data[i*8], &p.buffers[i][0])
	}
}

func TestPool_PublishesFullBuffers(t *testing.T) {
	p := New(4, 8)
	var next int16

	p.Write(fillSequence(&next, 5))
	assert.Equal(t, 0, p.Ready())

	p.Write(fillSequence(&next, 5))
	assert.Equal(t, 0, p.Ready(), "partial fill stays private")

	p.Write(fillSequence(&next, 3))
	require.Equal(t, 1, p.Ready())

	select {
	case <-p.Wait():
	default:
		t.Fatal("publish did not signal")
	}

	buf, ok := p.Peek()
	require.True(t, ok)
	assert.Equal(t, []int16{0, 1, 2, 3, 4, 5, 6, 7}, buf)

	p.Release()
	assert.Equal(t, 0, p.Ready())
	assert.Equal(t, uint64(1), p.Published())
}

func TestPool_Overrun(t *testing.T) {
	p := New(4, 2)
	var next int16

	for range 3 {
		p.Write(fillSequence(&next, 2))
	}
	assert.Equal(t, 3, p.Ready())
	assert.False(t, p.Overrun())

	// Filling the fourth buffer would move the cursor onto buffer 0.
	p.Write(fillSequence(&next, 2))
	assert.True(t, p.Overrun())
	assert.Equal(t, 3, p.Ready())

	calls := 0
	p.Write(func(dst []int16) int { calls++; return len(dst) })
	assert.Zero(t, calls, "writes are dropped after an overrun")

	p.Reset()
	assert.False(t, p.Overrun())
	assert.Equal(t, 0, p.Ready())
}

func TestPool_ReleaseOnEmptyIsNoop(t *testing.T) {
	p := New(2, 2)
	p.Release()
	assert.Equal(t, 0, p.Ready())
}

// Random interleavings of producer and consumer steps keep the cursor
// invariant and deliver samples in order.
func TestPool_RandomInterleavings(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := range 200 {
		n := 2 + rng.Intn(7)
		size := 1 + rng.Intn(16)
		p := New(n, size)

		var next, expect int16
		for step := 0; step < 500 && !p.Overrun(); step++ {
			if rng.Intn(2) == 0 {
				p.Write(fillSequence(&next, 1+rng.Intn(size)))
			} else if buf, ok := p.Peek(); ok {
				writeBuf := p.buffers[p.written.Load()%uint64(n)]
				require.NotSame(t, &writeBuf[0], &buf[0], "round %d step %d", round, step)
				for _, v := range buf {
					require.Equal(t, expect, v, "round %d step %d", round, step)
					expect++
				}
				p.Release()
			}

			require.LessOrEqual(t, p.Ready(), n-1, "round %d step %d", round, step)
			require.GreaterOrEqual(t, p.Ready(), 0)
		}
	}
}

func TestPool_ConcurrentProducerConsumer(t *testing.T) {
	const total = 200
	p := New(8, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var next int16
		for range total {
			for p.Ready() >= p.Buffers()-1 {
				time.Sleep(10 * time.Microsecond)
			}
			for i := 0; i < 64; i += 16 {
				p.Write(fillSequence(&next, 16))
			}
		}
	}()

	var expect int16
	got := 0
	timeout := time.After(10 * time.Second)
	for got < total {
		select {
		case <-p.Wait():
		case <-timeout:
			t.Fatal("consumer timed out")
		}
		for {
			buf, ok := p.Peek()
			if !ok {
				break
			}
			for _, v := range buf {
				require.Equal(t, expect, v)
				expect++
			}
			p.Release()
			got++
		}
	}

	wg.Wait()
	assert.False(t, p.Overrun())
}
