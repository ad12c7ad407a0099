//go:build unix

package ptyexpect

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestStreamPair(t *testing.T) (*PtyStream, func()) {
	t.Helper()
	ptm, pts, err := pty.Open()
	require.NoError(t, err)

	stream, err := NewPtyStream(ptm, nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = stream.Close()
		_ = pts.Close()
		_ = ptm.Close()
	}
	return stream, cleanup
}

func TestPtyStream_TryReadWouldBlock(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	n, err := stream.TryRead(make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPtyStream_IsEmpty(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	empty, err := stream.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestPtyStream_ReadAvailable_FillsRetentionBuffer(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	_, err := stream.Write([]byte("hello"))
	require.NoError(t, err)

	// Give the kernel time to echo the bytes back to the master side.
	deadline := time.Now().Add(time.Second)
	for stream.GetAvailable() == nil && time.Now().Before(deadline) {
		eof, err := stream.ReadAvailable()
		require.NoError(t, err)
		require.False(t, eof)
		if len(stream.GetAvailable()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Contains(t, string(stream.GetAvailable()), "hello")
}

func TestPtyStream_ConsumeFromBuffer(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	stream.buf.Append([]byte("abcdef"))
	stream.ConsumeFromBuffer(3)
	assert.Equal(t, "def", string(stream.GetAvailable()))
}

func TestPtyStream_ReadLineServesRetentionBufferFirst(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	// Bytes appended here mimic what Expect/Check leave behind: observed
	// but unmatched data that never touched s.br. ReadLine must find the
	// delimiter here before falling back to a fresh fd read.
	stream.buf.Append([]byte("first\nsecond"))

	line, err := stream.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(line))
	assert.Equal(t, "second", string(stream.GetAvailable()))
}

func TestPtyStream_ConsumePrefersRetentionBuffer(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	stream.buf.Append([]byte("abcdef"))
	stream.Consume(2)
	assert.Equal(t, "cdef", string(stream.GetAvailable()))
}

func TestPtyStream_FillBufPrefersRetentionBuffer(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	stream.buf.Append([]byte("xyz"))
	b, err := stream.FillBuf()
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(b))
}

func TestPtyStream_NonBlockingRestoredAfterTryRead(t *testing.T) {
	stream, cleanup := newTestStreamPair(t)
	defer cleanup()

	_, err := stream.TryRead(make([]byte, 4))
	require.NoError(t, err)

	flags, err := unix.FcntlInt(stream.readFile.Fd(), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.Zero(t, flags&unix.O_NONBLOCK, "read fd should be left in blocking mode after TryRead")
}
