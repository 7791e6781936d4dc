package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(1))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 8192, sizeClass(8000))
}

func TestGetBoolReturnsZeroedBuffer(t *testing.T) {
	buf := GetBool(100)
	require.Len(t, buf, 100)
	for i := range buf {
		buf[i] = true
	}
	PutBool(buf)

	// A reused buffer must come back clean: stale ink pixels from a
	// previous page would corrupt the next binarize pass.
	buf2 := GetBool(100)
	require.Len(t, buf2, 100)
	for i, v := range buf2 {
		require.False(t, v, "index %d not zeroed", i)
	}
	PutBool(buf2)
}

func TestGetBoolHandlesPageSizedMasks(t *testing.T) {
	// A 2339x3309 page at 200 DPI is the common case.
	const n = 2339 * 3309
	buf := GetBool(n)
	require.Len(t, buf, n)
	assert.GreaterOrEqual(t, cap(buf), n)
	PutBool(buf)
}

func TestPutBoolNilIsSafe(t *testing.T) {
	assert.NotPanics(t, func() { PutBool(nil) })
}

func TestPoolConcurrentUse(t *testing.T) {
	// Page and column masks are taken and returned from concurrently
	// processed columns; the pool must tolerate that.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				buf := GetBool(4096)
				buf[0] = true
				buf[len(buf)-1] = true
				PutBool(buf)
			}
		}()
	}
	wg.Wait()
}
