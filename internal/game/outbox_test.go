package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOutboxPushAndDrain(t *testing.T) {
	o := NewOutbox("conn-1", 4)
	require.NoError(t, o.Push([]byte("a")))
	require.NoError(t, o.Push([]byte("b")))

	assert.Equal(t, []byte("a"), <-o.Frames())
	assert.Equal(t, []byte("b"), <-o.Frames())
}

func TestOutboxPushFull(t *testing.T) {
	o := NewOutbox("conn-1", 1)
	require.NoError(t, o.Push([]byte("a")))
	assert.Error(t, o.Push([]byte("b")))
}

func TestOutboxPushAfterClose(t *testing.T) {
	o := NewOutbox("conn-1", 4)
	require.NoError(t, o.Close())
	assert.Error(t, o.Push([]byte("a")))
}

func TestOutboxCloseIdempotent(t *testing.T) {
	o := NewOutbox("conn-1", 4)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
}

func TestOutboxCloseDrainsBufferedFrames(t *testing.T) {
	o := NewOutbox("conn-1", 4)
	require.NoError(t, o.Push([]byte("a")))
	require.NoError(t, o.Close())

	// Buffered frame is still delivered, then the channel reports closed.
	frame, ok := <-o.Frames()
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), frame)

	_, ok = <-o.Frames()
	assert.False(t, ok)
}

func TestOutboxDefaultBufferSize(t *testing.T) {
	o := NewOutbox("conn-1", 0)
	for i := 0; i < 64; i++ {
		require.NoError(t, o.Push([]byte("x")))
	}
	assert.Error(t, o.Push([]byte("overflow")))
}

func TestPropertyOutboxOrderPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 32).Draw(t, "n")
		o := NewOutbox("conn-1", n)

		frames := make([][]byte, n)
		for i := range frames {
			frames[i] = []byte(rapid.String().Draw(t, "frame"))
			require.NoError(t, o.Push(frames[i]))
		}
		for i := range frames {
			assert.Equal(t, frames[i], <-o.Frames())
		}
	})
}
