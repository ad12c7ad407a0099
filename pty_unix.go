//go:build unix

package ptyexpect

import (
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/pkg/term/termios"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ExitStatus describes how a child process terminated.
type ExitStatus struct {
	Code int
	Err  error
}

// PtyChild is the collaborator responsible for allocating a PTY, spawning
// a child process attached to it, and reporting the child's configured
// control characters. The only implementation in this module is the Unix
// one below; a Windows ConPTY backend would implement the same interface.
type PtyChild interface {
	// Master returns the PTY master file.
	Master() *os.File
	// EOFChar returns the byte the child's terminal driver interprets as
	// end-of-file (normally Ctrl-D).
	EOFChar() byte
	// INTRChar returns the byte the child's terminal driver interprets as
	// an interrupt (normally Ctrl-C).
	INTRChar() byte
	// Wait blocks until the child exits, exactly once; subsequent calls
	// return the cached result.
	Wait() (ExitStatus, error)
	// Kill sends SIGKILL to the child.
	Kill() error
	// IsAlive reports whether the child is known to still be running.
	IsAlive() bool
	// Close releases the PTY master.
	Close() error
}

// unixPtyChild spawns a command attached to a new PTY pair via
// github.com/creack/pty, and reads its VEOF/VINTR control characters via
// termios once at spawn time.
type unixPtyChild struct {
	master *os.File
	cmd    *exec.Cmd
	eof    byte
	intr   byte
	log    *logrus.Logger

	waitOnce sync.Once
	waitMu   sync.Mutex
	status   ExitStatus
	waitErr  error
	exited   bool
}

// spawnConfig mirrors the fields options.go resolves before a spawn.
type spawnConfig struct {
	rows    uint16
	cols    uint16
	env     []string
	dir     string
	cmdName string
	args    []string
	log     *logrus.Logger
}

// spawnUnixPtyChild starts cfg's command attached to a PTY of the
// requested size, following the same pty.StartWithSize call the teacher's
// NewConsole uses.
func spawnUnixPtyChild(cfg *spawnConfig) (*unixPtyChild, error) {
	log := cfg.log
	if log == nil {
		log = noopLogger()
	}

	cmd := exec.Command(cfg.cmdName, cfg.args...)
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}
	if cfg.dir != "" {
		cmd.Dir = cfg.dir
	}

	ws := &pty.Winsize{Rows: cfg.rows, Cols: cfg.cols}
	master, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, wrapErr(KindPty, "start command under pty", err)
	}

	eofChar, intrChar, err := readControlChars(master)
	if err != nil {
		log.WithError(err).Warn("ptyexpect: failed to read termios control characters, using defaults")
		eofChar = EOT.Byte()
		intrChar = ETX.Byte()
	}

	log.WithFields(logrus.Fields{
		"command": cfg.cmdName,
		"args":    cfg.args,
		"pid":     cmd.Process.Pid,
	}).Debug("ptyexpect: spawned child under pty")

	return &unixPtyChild{
		master: master,
		cmd:    cmd,
		eof:    eofChar,
		intr:   intrChar,
		log:    log,
	}, nil
}

// readControlChars reads VEOF/VINTR from the termios attached to master.
func readControlChars(master *os.File) (eof, intr byte, err error) {
	attrs, err := termios.Tcgetattr(master.Fd())
	if err != nil {
		return 0, 0, wrapErr(KindPty, "tcgetattr", err)
	}
	return attrs.Cc[unix.VEOF], attrs.Cc[unix.VINTR], nil
}

func (p *unixPtyChild) Master() *os.File { return p.master }
func (p *unixPtyChild) EOFChar() byte    { return p.eof }
func (p *unixPtyChild) INTRChar() byte   { return p.intr }

func (p *unixPtyChild) Wait() (ExitStatus, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.waitMu.Lock()
		defer p.waitMu.Unlock()
		p.waitErr = err
		p.exited = true
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				p.status = ExitStatus{Code: exitErr.ExitCode(), Err: err}
			} else {
				p.status = ExitStatus{Code: -1, Err: err}
			}
		} else {
			p.status = ExitStatus{Code: 0}
		}
	})
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return p.status, p.waitErr
}

func (p *unixPtyChild) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGKILL); err != nil {
		return wrapErr(KindPty, "kill child", err)
	}
	return nil
}

func (p *unixPtyChild) IsAlive() bool {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return !p.exited
}

func (p *unixPtyChild) Close() error {
	if err := p.master.Close(); err != nil {
		return ioErr("close pty master", err)
	}
	return nil
}
