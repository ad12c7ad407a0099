package ptyexpect

import (
	"errors"
	"fmt"
)

// Kind classifies the failure category of an *Error, so callers can branch
// on errors.As without string-matching a message.
type Kind int

const (
	// KindOther is the catch-all kind, used for conditions that do not
	// have a more specific classification (e.g. an unrecognized control
	// code mnemonic).
	KindOther Kind = iota
	// KindIO marks an underlying read/write/syscall failure.
	KindIO
	// KindPty marks a failure from the PTY/child-process collaborator
	// (spawn failure, ioctl/termios failure).
	KindPty
	// KindCommandParsing marks malformed command-string input to Spawn.
	KindCommandParsing
	// KindRegexParsing marks a malformed regular expression passed to
	// Regexp.
	KindRegexParsing
	// KindExpectTimeout marks Expect/ExpectContext exceeding its
	// configured timeout without a match.
	KindExpectTimeout
	// KindEOF marks the child closing its output stream with no match
	// found.
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindPty:
		return "pty"
	case KindCommandParsing:
		return "command-parsing"
	case KindRegexParsing:
		return "regex-parsing"
	case KindExpectTimeout:
		return "expect-timeout"
	case KindEOF:
		return "eof"
	default:
		return "other"
	}
}

// Error is the wrapping error type returned by this package. It carries a
// Kind for errors.As-based dispatch and, usually, an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Message != "" {
			return fmt.Sprintf("ptyexpect: %s: %s: %v", e.Kind, e.Message, e.Cause)
		}
		return fmt.Sprintf("ptyexpect: %s: %v", e.Kind, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("ptyexpect: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("ptyexpect: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel error for e's Kind, letting
// errors.Is(err, ErrIO) etc. work without every caller reaching for
// errors.As.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	if !ok {
		return false
	}
	return sentinel.kind == e.Kind
}

// sentinelError is the concrete type behind the package-level Err* values;
// it exists solely so errors.Is can match against an *Error's Kind.
type sentinelError struct {
	kind Kind
}

func (s *sentinelError) Error() string {
	return fmt.Sprintf("ptyexpect: %s", s.kind)
}

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrIO             error = &sentinelError{kind: KindIO}
	ErrPty            error = &sentinelError{kind: KindPty}
	ErrCommandParsing error = &sentinelError{kind: KindCommandParsing}
	ErrRegexParsing   error = &sentinelError{kind: KindRegexParsing}
	ErrExpectTimeout  error = &sentinelError{kind: KindExpectTimeout}
	ErrEOF            error = &sentinelError{kind: KindEOF}
	ErrOther          error = &sentinelError{kind: KindOther}
)

// wrapErr builds an *Error of the given kind, wrapping cause (which may be
// nil) with a short descriptive message.
func wrapErr(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ioErr wraps an I/O failure observed on the PTY master.
func ioErr(message string, cause error) error {
	return wrapErr(KindIO, message, cause)
}

// As is a convenience re-export so callers needn't import "errors" just to
// type-assert an *Error out of a returned error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
