package ptyexpect

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	noopOnce   sync.Once
	noopLogVal *logrus.Logger
)

// noopLogger returns a shared logrus.Logger configured to discard all
// output, used whenever a caller does not supply one via WithLogger.
func noopLogger() *logrus.Logger {
	noopOnce.Do(func() {
		l := logrus.New()
		l.SetOutput(io.Discard)
		noopLogVal = l
	})
	return noopLogVal
}
