package ptyexpect

import (
	"bytes"
	"regexp"
)

// Eof is a Needle that succeeds only once the stream has reached
// end-of-file, consuming everything remaining in the buffer.
type Eof struct{}

// Check implements Needle.
func (Eof) Check(data []byte, eof bool) ([]Match, error) {
	if !eof {
		return nil, nil
	}
	return []Match{{Start: 0, End: len(data)}}, nil
}

// NBytes is a Needle that succeeds as soon as at least N bytes are
// available, consuming exactly N of them.
type NBytes int

// Check implements Needle.
func (n NBytes) Check(data []byte, eof bool) ([]Match, error) {
	if len(data) < int(n) {
		return nil, nil
	}
	return []Match{{Start: 0, End: int(n)}}, nil
}

// Literal is a Needle that succeeds when data contains the given string
// verbatim.
type Literal string

// Check implements Needle.
func (l Literal) Check(data []byte, eof bool) ([]Match, error) {
	i := bytes.Index(data, []byte(l))
	if i < 0 {
		return nil, nil
	}
	return []Match{{Start: i, End: i + len(l)}}, nil
}

// Regexp is a Needle backed by a compiled regular expression. Capture
// groups that participated in the match become additional Match records,
// in declaration order; the overall match is always included and
// determines the right-most consumed index.
type Regexp struct {
	re *regexp.Regexp
}

// NewRegexp compiles expr and returns a Regexp needle. A malformed
// expression yields an ErrRegexParsing-kind error.
func NewRegexp(expr string) (Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regexp{}, wrapErr(KindRegexParsing, "compile regexp", err)
	}
	return Regexp{re: re}, nil
}

// MustRegexp is like NewRegexp but panics on a malformed expression,
// intended for package-level needle declarations built from constants.
func MustRegexp(expr string) Regexp {
	r, err := NewRegexp(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Check implements Needle.
func (r Regexp) Check(data []byte, eof bool) ([]Match, error) {
	loc := r.re.FindSubmatchIndex(data)
	if loc == nil {
		return nil, nil
	}
	matches := make([]Match, 0, len(loc)/2)
	for i := 0; i+1 < len(loc); i += 2 {
		if loc[i] < 0 || loc[i+1] < 0 {
			continue
		}
		matches = append(matches, Match{Start: loc[i], End: loc[i+1]})
	}
	return matches, nil
}
