package host

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedBuffer_Write(t *testing.T) {
	t.Run("writes within limit", func(t *testing.T) {
		buf := NewBoundedBuffer(100)
		n, err := buf.Write([]byte("hello"))
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", buf.String())
		assert.False(t, buf.Truncated())
	})

	t.Run("truncates at limit", func(t *testing.T) {
		buf := NewBoundedBuffer(10)
		n, err := buf.Write([]byte("hello world"))
		assert.NoError(t, err)
		assert.Equal(t, 11, n, "reports the full write")
		assert.Equal(t, "hello worl", buf.String())
		assert.True(t, buf.Truncated())
	})

	t.Run("writes after the limit are dropped", func(t *testing.T) {
		buf := NewBoundedBuffer(10)
		_, _ = buf.Write([]byte("1234567890"))
		assert.False(t, buf.Truncated())

		n, err := buf.Write([]byte("XXXXX"))
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "1234567890", buf.String())
		assert.True(t, buf.Truncated())
	})

	t.Run("reset", func(t *testing.T) {
		buf := NewBoundedBuffer(4)
		_, _ = buf.Write([]byte("123456"))
		buf.Reset()
		assert.Empty(t, buf.String())
		assert.False(t, buf.Truncated())
	})
}

func TestBoundedBuffer_ConcurrentWrites(t *testing.T) {
	buf := NewBoundedBuffer(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = buf.Write([]byte("0123456789"))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, buf.String(), 1000)
	assert.False(t, buf.Truncated())
}
