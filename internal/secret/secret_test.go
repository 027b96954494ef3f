package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocatesZeroed(t *testing.T) {
	b := New(16)
	require.Equal(t, 16, b.Len())
	assert.Equal(t, make([]byte, 16), b.Get())
}

func TestWrapTakesOwnership(t *testing.T) {
	raw := []byte{1, 2, 3}
	b := Wrap(raw)
	assert.Equal(t, raw, b.Get())
	assert.Equal(t, 3, b.Len())
}

func TestClearKeepsBufferUsable(t *testing.T) {
	b := Wrap([]byte{1, 2, 3, 4})
	b.Clear()
	assert.Equal(t, []byte{0, 0, 0, 0}, b.Get())
	assert.Equal(t, 4, b.Len())

	copy(b.GetMut(), []byte{9, 9, 9, 9})
	assert.Equal(t, []byte{9, 9, 9, 9}, b.Get())
}

func TestZeroReleasesBuffer(t *testing.T) {
	b := Wrap([]byte{1, 2, 3})
	b.Zero()
	assert.Nil(t, b.Get())
	assert.Equal(t, 0, b.Len())
}

func TestNilBytesIsSafe(t *testing.T) {
	var b *Bytes
	assert.Nil(t, b.Get())
	assert.Equal(t, 0, b.Len())
	assert.NotPanics(t, func() {
		b.Clear()
		b.Zero()
	})
}
