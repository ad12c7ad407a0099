package ptyexpect

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
)

// readScratchSize is the size of the scratch buffer used by ReadAvailable
// to drain everything currently pending on the fd in as few syscalls as
// possible. 256 comfortably satisfies the "at least 248 bytes" floor this
// design is grounded on.
const readScratchSize = 256

// PtyStream is a duplex byte stream over a PTY master file descriptor. It
// retains bytes read from the fd but not yet consumed by a match in an
// internal ByteBuffer, and provides blocking and non-blocking read
// primitives over the same underlying descriptor.
//
// PtyStream is not safe for concurrent use.
type PtyStream struct {
	readFile  *os.File
	writeFile *os.File
	br        *bufio.Reader
	buf       ByteBuffer
	log       *logrus.Logger
}

// NewPtyStream wraps master, duplicating its file descriptor once for the
// read side and once for the write side so that each side can be owned
// and closed independently while still referring to the same open file
// description (and so non-blocking-mode toggles on one are visible on the
// other, which the read path relies on).
func NewPtyStream(master *os.File, log *logrus.Logger) (*PtyStream, error) {
	if log == nil {
		log = noopLogger()
	}

	readFD, err := syscall.Dup(int(master.Fd()))
	if err != nil {
		return nil, ioErr("dup pty master for reading", err)
	}
	writeFD, err := syscall.Dup(int(master.Fd()))
	if err != nil {
		_ = syscall.Close(readFD)
		return nil, ioErr("dup pty master for writing", err)
	}

	readFile := os.NewFile(uintptr(readFD), master.Name()+":r")
	writeFile := os.NewFile(uintptr(writeFD), master.Name()+":w")

	return &PtyStream{
		readFile:  readFile,
		writeFile: writeFile,
		br:        bufio.NewReader(readFile),
		log:       log,
	}, nil
}

// Close releases both duplicated descriptors.
func (s *PtyStream) Close() error {
	errRead := s.readFile.Close()
	errWrite := s.writeFile.Close()
	if errRead != nil {
		return ioErr("close pty read side", errRead)
	}
	if errWrite != nil {
		return ioErr("close pty write side", errWrite)
	}
	return nil
}

// Write writes p to the PTY master.
func (s *PtyStream) Write(p []byte) (int, error) {
	n, err := s.writeFile.Write(p)
	if err != nil {
		return n, ioErr("write", err)
	}
	return n, nil
}

// WriteString writes s to the PTY master.
func (s *PtyStream) WriteString(str string) (int, error) {
	n, err := s.writeFile.WriteString(str)
	if err != nil {
		return n, ioErr("write", err)
	}
	return n, nil
}

// WriteVectored writes the concatenation of bufs with a single Write call:
// several buffers are joined into one slice first, and a single buffer is
// written as is without a copy. No writev is issued. It lets callers like
// SendLine express "payload + terminator" as one logical write.
func (s *PtyStream) WriteVectored(bufs ...[]byte) (int, error) {
	if len(bufs) == 1 {
		return s.Write(bufs[0])
	}
	joined := bytes.Join(bufs, nil)
	return s.Write(joined)
}

// Flush is a no-op for the write side (os.File writes are unbuffered) but
// is provided to satisfy callers expecting a Flush method alongside Write.
func (s *PtyStream) Flush() error {
	return nil
}

// Read performs a blocking read, serving from the retention buffer first.
func (s *PtyStream) Read(dst []byte) (int, error) {
	if s.buf.Len() > 0 {
		n := copy(dst, s.buf.View())
		s.buf.DrainFront(n)
		return n, nil
	}
	n, err := s.br.Read(dst)
	if err != nil && err != io.EOF {
		return n, ioErr("read", err)
	}
	return n, err
}

// withNonBlocking toggles O_NONBLOCK on the read descriptor for the
// duration of fn, unconditionally restoring blocking mode afterward (even
// if fn panics), since O_NONBLOCK is a property of the open file
// description and is therefore visible on the write-side duplicate too.
func (s *PtyStream) withNonBlocking(fn func() error) error {
	fd := int(s.readFile.Fd())
	if err := syscall.SetNonblock(fd, true); err != nil {
		return ioErr("set non-blocking", err)
	}
	defer func() {
		if err := syscall.SetNonblock(fd, false); err != nil {
			s.log.WithError(err).Warn("ptyexpect: failed to restore blocking mode")
		}
	}()
	return fn()
}

// wouldBlock reports whether err indicates a non-blocking read found
// nothing available yet.
func wouldBlock(err error) bool {
	return err == syscall.EAGAIN || err == syscall.EWOULDBLOCK
}

// tryReadInner performs one non-buffered, non-blocking read directly
// against the fd (bypassing s.br, mirroring the original's distinction
// between try_read and the internal try_read_inner used by the
// available-draining helpers).
func (s *PtyStream) tryReadInner(buf []byte) (n int, err error) {
	werr := s.withNonBlocking(func() error {
		var rerr error
		n, rerr = s.readFile.Read(buf)
		switch {
		case rerr == nil || rerr == io.EOF:
			// nil: data (n>0) or, per os.File's contract, a clean 0-byte
			// EOF read already reported as (0, io.EOF) - either way n is
			// already correct and there is nothing to translate.
		case isWouldBlockErr(rerr):
			n = 0
			err = errWouldBlock
		case isPtyClosedErr(rerr):
			// On Linux (and reportedly other platforms), reading a PTY
			// master after every slave fd has closed yields EIO rather
			// than a 0-byte read; fold it into the same "EOF" signal
			// (n=0, err=nil) tryReadInner's callers already expect.
			n = 0
		default:
			return rerr
		}
		return nil
	})
	if werr != nil {
		return 0, werr
	}
	return n, err
}

// isPtyClosedErr reports whether err is the platform's signal that a PTY
// master's slave side has gone away (EIO on Linux).
func isPtyClosedErr(err error) bool {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err == syscall.EIO
	}
	return err == syscall.EIO
}

// errWouldBlock is an internal sentinel distinguishing "no data yet" from
// a real I/O failure; it never escapes the package.
var errWouldBlock = &sentinelError{kind: KindOther}

func isWouldBlockErr(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*os.PathError); ok {
		return wouldBlock(pe.Err)
	}
	return wouldBlock(err)
}

// TryRead performs a single non-blocking read into dst, restoring blocking
// mode before returning. A would-block outcome is reported as (0, nil),
// matching the behavior relied on by IsEmpty.
func (s *PtyStream) TryRead(dst []byte) (int, error) {
	if s.buf.Len() > 0 {
		n := copy(dst, s.buf.View())
		s.buf.DrainFront(n)
		return n, nil
	}
	n, err := s.tryReadInner(dst)
	if err == errWouldBlock {
		return 0, nil
	}
	if err != nil {
		return 0, ioErr("try-read", err)
	}
	return n, nil
}

// IsEmpty reports whether a TryRead would currently return no data. A
// zero-length read never reaches the fd, so when the retention buffer is
// empty this probes with a one-byte non-blocking read; a byte read that way
// is kept in the retention buffer, where the next read serves it.
func (s *PtyStream) IsEmpty() (bool, error) {
	if s.buf.Len() > 0 {
		return false, nil
	}
	var probe [1]byte
	n, err := s.tryReadInner(probe[:])
	if err == errWouldBlock {
		return true, nil
	}
	if err != nil {
		return false, ioErr("is-empty", err)
	}
	if n == 0 {
		return true, nil
	}
	s.buf.Append(probe[:n])
	return false, nil
}

// flushInBuffer moves any bytes already sitting in the bufio.Reader's
// internal buffer into the retention buffer. Two buffered layers (br and
// buf) would otherwise let bytes go "invisible" to a needle scan if br had
// already pulled them off the fd before a ReadAvailable* call ran.
func (s *PtyStream) flushInBuffer() {
	if n := s.br.Buffered(); n > 0 {
		peek, _ := s.br.Peek(n)
		s.buf.Append(peek)
		_, _ = s.br.Discard(n)
	}
}

// ReadAvailableOnce performs a single non-blocking read into scratch,
// appending any bytes read to the retention buffer. The boolean result
// reports whether a definitive outcome was observed (false means
// would-block, try again later); when true, n==0 means EOF and n>0 means
// data was read.
func (s *PtyStream) ReadAvailableOnce(scratch []byte) (n int, gotData bool, err error) {
	s.flushInBuffer()
	rn, rerr := s.tryReadInner(scratch)
	switch {
	case rerr == errWouldBlock:
		return 0, false, nil
	case rerr != nil:
		return 0, false, ioErr("read-available-once", rerr)
	case rn == 0:
		return 0, true, nil
	default:
		s.buf.Append(scratch[:rn])
		return rn, true, nil
	}
}

// ReadAvailable drains everything currently available on the fd without
// blocking, appending it all to the retention buffer. It returns eof=true
// if a zero-length read (peer closed) was observed, and eof=false if the
// drain stopped because the fd would have blocked.
func (s *PtyStream) ReadAvailable() (eof bool, err error) {
	s.flushInBuffer()

	scratch := make([]byte, readScratchSize)
	for {
		n, rerr := s.tryReadInner(scratch)
		switch {
		case rerr == errWouldBlock:
			return false, nil
		case rerr != nil:
			return false, ioErr("read-available", rerr)
		case n == 0:
			return true, nil
		default:
			s.buf.Append(scratch[:n])
		}
	}
}

// GetAvailable returns the bytes currently held in the retention buffer.
// The returned slice is valid only until the next mutating call.
func (s *PtyStream) GetAvailable() []byte {
	return s.buf.View()
}

// ConsumeFromBuffer drops the first n bytes of the retention buffer,
// called after a successful match to "eat" the bytes a needle accepted.
func (s *PtyStream) ConsumeFromBuffer(n int) {
	s.buf.DrainFront(n)
}

// FillBuf ensures data is available without consuming it, serving the
// retention buffer before touching the fd-backed reader: Expect/Check fill
// buf via tryReadInner directly, bypassing br, so buf (not br) is where
// bytes observed by a prior Expect actually live.
func (s *PtyStream) FillBuf() ([]byte, error) {
	s.flushInBuffer()
	if s.buf.Len() > 0 {
		return s.buf.View(), nil
	}
	b, err := s.br.Peek(1)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, ioErr("fill-buf", err)
	}
	if n := s.br.Buffered(); n > 0 {
		b, _ = s.br.Peek(n)
	}
	return b, nil
}

// Consume discards n bytes from the front of the stream, taking from the
// retention buffer before the fd-backed reader so the two stay in sync.
func (s *PtyStream) Consume(n int) {
	s.flushInBuffer()
	if s.buf.Len() > 0 {
		take := n
		if take > s.buf.Len() {
			take = s.buf.Len()
		}
		s.buf.DrainFront(take)
		n -= take
	}
	if n > 0 {
		_, _ = s.br.Discard(n)
	}
}

// ReadLine reads a line, including its terminating '\n' if present.
func (s *PtyStream) ReadLine() ([]byte, error) {
	return s.readDelim('\n')
}

// ReadUntil reads until delim is encountered, inclusive.
func (s *PtyStream) ReadUntil(delim byte) ([]byte, error) {
	return s.readDelim(delim)
}

// readDelim unifies the retention buffer and the fd-backed reader into a
// single delimited read. Expect/Check append to buf via non-blocking reads
// that bypass br entirely, so after an Expect call the retained bytes live
// in buf and br is empty; reading only from br here would silently skip
// them. flushInBuffer folds br's currently-buffered bytes into buf first,
// so whichever of the two actually holds pending data, the scan below sees
// it in the right order.
func (s *PtyStream) readDelim(delim byte) ([]byte, error) {
	s.flushInBuffer()

	if i := bytes.IndexByte(s.buf.View(), delim); i >= 0 {
		line := make([]byte, i+1)
		copy(line, s.buf.View()[:i+1])
		s.buf.DrainFront(i + 1)
		return line, nil
	}

	var prefix []byte
	if s.buf.Len() > 0 {
		prefix = make([]byte, s.buf.Len())
		copy(prefix, s.buf.View())
		s.buf.Reset()
	}

	rest, err := s.br.ReadBytes(delim)
	out := append(prefix, rest...)
	if err != nil && err != io.EOF {
		return out, ioErr("read-delim", err)
	}
	return out, err
}
