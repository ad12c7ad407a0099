package ptyexpect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBuffer_AppendView(t *testing.T) {
	var b ByteBuffer
	b.Append([]byte("hello"))
	b.Append([]byte(" world"))
	assert.Equal(t, "hello world", string(b.View()))
	assert.Equal(t, 11, b.Len())
}

func TestByteBuffer_DrainFront(t *testing.T) {
	var b ByteBuffer
	b.Append([]byte("abcdef"))
	b.DrainFront(3)
	assert.Equal(t, "def", string(b.View()))
	b.DrainFront(3)
	assert.Equal(t, 0, b.Len())
}

func TestByteBuffer_DrainFrontZero(t *testing.T) {
	var b ByteBuffer
	b.Append([]byte("abc"))
	b.DrainFront(0)
	assert.Equal(t, "abc", string(b.View()))
}

func TestByteBuffer_DrainFrontOutOfRangePanics(t *testing.T) {
	var b ByteBuffer
	b.Append([]byte("ab"))
	require.Panics(t, func() {
		b.DrainFront(3)
	})
}

func TestByteBuffer_Reset(t *testing.T) {
	var b ByteBuffer
	b.Append([]byte("abc"))
	b.Reset()
	assert.Equal(t, 0, b.Len())
}
