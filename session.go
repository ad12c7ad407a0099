package ptyexpect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Session is the public façade over a child process attached to a PTY: it
// owns exactly one PtyChild and one PtyStream, and implements the
// byte-incremental expectation loop plus the writer helpers.
//
// Every method that touches the stream holds the Session's mutex for the
// whole call, so concurrent calls (including two Expect/ExpectContext
// calls) run one after another rather than interleaving; the matching
// cursor is local to each call. The order in which waiting calls run is
// not defined.
type Session struct {
	mu            sync.Mutex
	child         PtyChild
	stream        *PtyStream
	expectTimeout *time.Duration
	log           *logrus.Logger

	closeOnce sync.Once
	closeErr  error
}

var defaultExpectTimeout = 10 * time.Second

// Spawn splits commandString into an argv with a minimal shell-like
// splitter (see splitCommand) and starts it attached to a new PTY.
func Spawn(commandString string, opts ...Option) (*Session, error) {
	args, err := splitCommand(commandString)
	if err != nil {
		return nil, err
	}
	return SpawnCmd(args[0], args[1:], opts...)
}

// SpawnCmd starts name with args attached to a new PTY. It is the
// recommended entry point for programmatic callers, since it bypasses
// command-string parsing entirely.
func SpawnCmd(name string, args []string, opts ...Option) (*Session, error) {
	cfg := resolveOptions(opts)
	log := cfg.log
	if log == nil {
		log = noopLogger()
	}

	child, err := spawnUnixPtyChild(&spawnConfig{
		rows:    cfg.rows,
		cols:    cfg.cols,
		env:     cfg.env,
		dir:     cfg.dir,
		cmdName: name,
		args:    args,
		log:     log,
	})
	if err != nil {
		return nil, err
	}

	stream, err := NewPtyStream(child.Master(), log)
	if err != nil {
		_ = child.Close()
		return nil, err
	}

	timeout := defaultExpectTimeout
	if cfg.defaultTimeout > 0 {
		timeout = cfg.defaultTimeout
	}

	return &Session{
		child:         child,
		stream:        stream,
		expectTimeout: &timeout,
		log:           log,
	}, nil
}

// SetExpectTimeout sets the timeout applied by Expect/ExpectContext. A nil
// duration means wait forever.
func (s *Session) SetExpectTimeout(d *time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectTimeout = d
}

// Expect is sugar for ExpectContext(context.Background(), needle): the
// blocking-threaded scheduling mode, where the calling goroutine blocks
// until match, EOF, or timeout.
func (s *Session) Expect(needle Needle) (Found, error) {
	return s.ExpectContext(context.Background(), needle)
}

// ExpectContext drives the byte-incremental expectation loop: it offers
// the needle a strictly growing prefix of the retention buffer, reading
// exactly one new byte (non-blockingly) per iteration only once the
// needle has seen everything currently available. This is what makes the
// matching lazy/minimal rather than greedy: a regex \d+ against "123" is
// offered "1" before "12" or "123", and returns on the first success.
//
// Cancelling ctx between iterations ends the loop cleanly; bytes already
// read remain in the retention buffer for a subsequent call.
func (s *Session) ExpectContext(ctx context.Context, needle Needle) (Found, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkingLen := 0
	eof := false
	start := time.Now()
	timeout := s.expectTimeout

	for {
		available := s.stream.GetAvailable()
		if checkingLen == len(available) {
			// Read by byte to stay as lazy as possible: a larger chunked
			// read would make a needle like \d+ match greedily by
			// accident, and risks losing the EOF indication inside a
			// larger buffer than the needle was asked about.
			n, gotData, err := s.stream.ReadAvailableOnce(make([]byte, 1))
			if err != nil {
				return Found{}, err
			}
			eof = gotData && n == 0
			available = s.stream.GetAvailable()
		}

		// Intentionally not incremented when the buffer hasn't grown:
		// re-run the needle once more even on an unchanged prefix, since
		// a needle may have its own internal state/timers that need the
		// extra call.
		if checkingLen < len(available) {
			checkingLen++
		}

		data := available[:checkingLen]

		matches, err := needle.Check(data, eof)
		if err != nil {
			return Found{}, err
		}
		if len(matches) != 0 {
			end := rightMostIndex(matches)
			bytesOut := make([]byte, end)
			copy(bytesOut, data[:end])
			s.stream.ConsumeFromBuffer(end)
			return Found{Bytes: bytesOut, Matches: matches}, nil
		}

		if eof {
			return Found{}, wrapErr(KindEOF, "expect", nil)
		}

		if timeout != nil && time.Since(start) > *timeout {
			return Found{}, wrapErr(KindExpectTimeout, fmt.Sprintf("exceeded %s", *timeout), nil)
		}

		if err := ctx.Err(); err != nil {
			return Found{}, err
		}
	}
}

// Check is the non-blocking counterpart to Expect: it pulls in everything
// currently available in one pass and asks the needle about the entire
// buffer at once, so unlike Expect it is greedy. A regex \d+ against a
// buffer already containing "123" returns "123" from Check, but only "1"
// from Expect.
func (s *Session) Check(needle Needle) (Found, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eof, err := s.stream.ReadAvailable()
	if err != nil {
		return Found{}, err
	}
	buf := s.stream.GetAvailable()

	matches, err := needle.Check(buf, eof)
	if err != nil {
		return Found{}, err
	}
	if len(matches) != 0 {
		end := rightMostIndex(matches)
		bytesOut := make([]byte, end)
		copy(bytesOut, buf[:end])
		s.stream.ConsumeFromBuffer(end)
		return Found{Bytes: bytesOut, Matches: matches}, nil
	}

	if eof {
		return Found{}, wrapErr(KindEOF, "check", nil)
	}

	return Found{}, nil
}

// IsMatched is like Check but never consumes from the retention buffer.
// It is not guaranteed that a subsequent Check/Expect with the same
// needle will succeed, or operate on the same bytes: more data may have
// arrived, and Expect's matching strategy (prefix-incremental) differs
// from this method's (whole-buffer).
//
// If needle is Eof, be aware the EOF indication may be lost on a
// subsequent call, depending on the spawned process; prefer Check or
// Expect with Eof directly if you need the consuming behavior.
func (s *Session) IsMatched(needle Needle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eof, err := s.stream.ReadAvailable()
	if err != nil {
		return false, err
	}
	buf := s.stream.GetAvailable()

	matches, err := needle.Check(buf, eof)
	if err != nil {
		return false, err
	}
	if len(matches) != 0 {
		return true, nil
	}
	if eof {
		return false, wrapErr(KindEOF, "is-matched", nil)
	}
	return false, nil
}

// Send writes s's bytes to the PTY master.
func (s *Session) Send(str string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.WriteString(str)
}

// SendLine writes str followed by a newline, preferring a single vectored
// write of the two pieces (see PtyStream.WriteVectored) and retrying any
// unwritten tail rather than assuming the PTY master never does a partial
// write.
func (s *Session) SendLine(str string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := append([]byte(str), '\n')
	n, err := s.stream.WriteVectored([]byte(str), []byte{'\n'})
	for n < len(payload) {
		if err != nil {
			return err
		}
		var written int
		written, err = s.stream.Write(payload[n:])
		n += written
	}
	return err
}

// SendControl writes the single byte corresponding to code, which may be a
// ControlCode, a single-character string, a "^X" string, a mnemonic name
// (see ParseControlCode for the accepted string forms), or a bare
// character passed as a rune or byte (e.g. SendControl('C') for Ctrl-C).
func (s *Session) SendControl(code any) error {
	var cc ControlCode
	switch v := code.(type) {
	case ControlCode:
		cc = v
	case string:
		parsed, err := ParseControlCode(v)
		if err != nil {
			return err
		}
		cc = parsed
	case rune:
		parsed, err := controlCodeFromChar(byte(v))
		if err != nil {
			return err
		}
		cc = parsed
	case byte:
		parsed, err := controlCodeFromChar(v)
		if err != nil {
			return err
		}
		cc = parsed
	default:
		return wrapErr(KindOther, fmt.Sprintf("unsupported control code type %T", code), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.stream.Write([]byte{cc.Byte()})
	return err
}

// SendEOF writes the child's configured end-of-file control character.
func (s *Session) SendEOF() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.stream.Write([]byte{s.child.EOFChar()})
	return err
}

// SendIntr writes the child's configured interrupt control character.
func (s *Session) SendIntr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.stream.Write([]byte{s.child.INTRChar()})
	return err
}

// TryRead performs a single non-blocking read into buf.
func (s *Session) TryRead(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.TryRead(buf)
}

// IsEmpty reports whether a TryRead would currently return no data.
func (s *Session) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.IsEmpty()
}

// Read performs a blocking read.
func (s *Session) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Read(p)
}

// Write writes p to the PTY master.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Write(p)
}

// Flush is a no-op, provided for io.Writer-adjacent symmetry.
func (s *Session) Flush() error {
	return nil
}

// FillBuf returns pending data without consuming it: the retention buffer
// if it holds bytes, otherwise whatever the fd-backed reader buffers.
func (s *Session) FillBuf() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.FillBuf()
}

// Consume discards n bytes from the front of the stream, taking them from
// the retention buffer before the fd-backed reader.
func (s *Session) Consume(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.Consume(n)
}

// ReadLine reads a line, including its terminating '\n' if present.
func (s *Session) ReadLine() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.ReadLine()
}

// ReadUntil reads until delim is encountered, inclusive.
func (s *Session) ReadUntil(delim byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.ReadUntil(delim)
}

// Wait blocks until the child exits or ctx is done.
func (s *Session) Wait(ctx context.Context) (ExitStatus, error) {
	type result struct {
		status ExitStatus
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := s.child.Wait()
		done <- result{status: status, err: err}
	}()

	select {
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	case r := <-done:
		return r.status, r.err
	}
}

// Close terminates the session: it kills the child (if still alive),
// releases the PTY master, and is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.child.IsAlive() {
		if err := s.child.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	// Reap lazily in the background; we don't block Close on the child
	// actually exiting, only on releasing our own descriptors.
	go func() { _, _ = s.child.Wait() }()

	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.child.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}
