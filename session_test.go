//go:build unix

package ptyexpect

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("binary %q not found on PATH: %v", name, err)
	}
	return path
}

func TestSession_EchoExactLine(t *testing.T) {
	requireBinary(t, "cat")

	sess, err := Spawn("cat")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SendLine("Hello World"))

	found, err := sess.Expect(Literal("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", string(found.Bytes))
}

func TestSession_ExpectIsLazyMinimal(t *testing.T) {
	requireBinary(t, "sh")

	sess, err := SpawnCmd("sh", []string{"-c", "printf 123"})
	require.NoError(t, err)
	defer sess.Close()

	needle := MustRegexp(`\d+`)
	found, err := sess.Expect(needle)
	require.NoError(t, err)
	assert.Equal(t, "1", string(found.Bytes))
}

func TestSession_CheckIsGreedy(t *testing.T) {
	requireBinary(t, "sh")

	sess, err := SpawnCmd("sh", []string{"-c", "printf 123"})
	require.NoError(t, err)
	defer sess.Close()

	// Give the child time to write everything before we check.
	time.Sleep(200 * time.Millisecond)

	needle := MustRegexp(`\d+`)
	found, err := sess.Check(needle)
	require.NoError(t, err)
	assert.Equal(t, "123", string(found.Bytes))
}

func TestSession_ExpectEof(t *testing.T) {
	requireBinary(t, "true")

	sess, err := SpawnCmd("true", nil)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Expect(Eof{})
	require.NoError(t, err)
}

func TestSession_ExpectTimeout(t *testing.T) {
	requireBinary(t, "sleep")

	sess, err := SpawnCmd("sleep", []string{"2"})
	require.NoError(t, err)
	defer sess.Close()

	timeout := 50 * time.Millisecond
	sess.SetExpectTimeout(&timeout)

	_, err = sess.Expect(Literal("never"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectTimeout)

	// A second call with the same (short) timeout must again time out,
	// not hang or misreport EOF/panic.
	_, err = sess.Expect(Literal("never"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectTimeout)
}

func TestSession_ExpectContextCancel(t *testing.T) {
	requireBinary(t, "sleep")

	sess, err := SpawnCmd("sleep", []string{"2"})
	require.NoError(t, err)
	defer sess.Close()

	noTimeout := (*time.Duration)(nil)
	sess.SetExpectTimeout(noTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = sess.ExpectContext(ctx, Literal("never"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_SendEOF(t *testing.T) {
	requireBinary(t, "cat")

	sess, err := Spawn("cat")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SendEOF())

	_, err = sess.Expect(Eof{})
	require.NoError(t, err)
}

func TestSession_SendControlChar(t *testing.T) {
	requireBinary(t, "cat")

	sess, err := Spawn("cat")
	require.NoError(t, err)
	defer sess.Close()

	// 'D' is a bare rune, not a ControlCode/string; it must still resolve
	// to Ctrl-D (EOT) the same way SendControl("D")/SendControl(EOT) would.
	require.NoError(t, sess.SendControl('D'))

	_, err = sess.Expect(Eof{})
	require.NoError(t, err)
}

func TestSession_ReadLineAfterCheckUsesRetentionBuffer(t *testing.T) {
	requireBinary(t, "cat")

	sess, err := Spawn("cat")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SendLine("ab"))
	// Give the child time to echo the whole line before draining it in one
	// shot via Check.
	time.Sleep(200 * time.Millisecond)

	// Check drains everything currently available into the retention
	// buffer, then NBytes(1) consumes only the first byte; the rest must
	// stay reachable from ReadLine, not be skipped in favor of a fresh
	// (empty) fd-backed read.
	found, err := sess.Check(NBytes(1))
	require.NoError(t, err)
	assert.Equal(t, "a", string(found.Bytes))

	line, err := sess.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "b\r\n", string(line))
}

func TestSession_WaitExit(t *testing.T) {
	requireBinary(t, "sh")

	sess, err := SpawnCmd("sh", []string{"-c", "exit 7"})
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := sess.Wait(ctx)
	require.Error(t, err) // non-zero exit surfaces as *exec.ExitError
	assert.Equal(t, 7, status.Code)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	requireBinary(t, "cat")

	sess, err := Spawn("cat")
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestSession_ReadLine(t *testing.T) {
	requireBinary(t, "cat")

	sess, err := Spawn("cat")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SendLine("a"))

	// cat under a PTY echoes with \r\n line endings.
	line, err := sess.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a\r\n", string(line))
}
