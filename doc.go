// Package ptyexpect drives an interactive child process through a
// pseudo-terminal and matches patterns against its output: the
// programmatic equivalent of a human at a terminal sending input and
// waiting for recognizable output.
//
// A Session owns a PTY-attached child process and a byte-incremental
// matching loop:
//
//	sess, err := ptyexpect.Spawn("cat")
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer sess.Close()
//
//	if err := sess.SendLine("Hello World"); err != nil {
//	    t.Fatal(err)
//	}
//	found, err := sess.Expect(ptyexpect.Literal("Hello World"))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	_ = found.Bytes
//
// Expect is lazy: it offers a Needle a strictly growing prefix of the
// buffered output, one byte at a time, so a pattern like a regular
// expression matches the shortest satisfying prefix rather than greedily
// consuming everything already buffered. Check, by contrast, matches
// against everything currently available in one pass.
package ptyexpect
