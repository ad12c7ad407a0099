package ptyexpect

import (
	"time"

	"github.com/sirupsen/logrus"
)

// config holds the resolved settings for a Spawn/SpawnCmd call.
type config struct {
	rows           uint16
	cols           uint16
	defaultTimeout time.Duration
	env            []string
	dir            string
	log            *logrus.Logger
}

// Option configures a Session at spawn time.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithSize sets the PTY dimensions. Default is 24 rows by 80 columns.
func WithSize(rows, cols uint16) Option {
	return optionFunc(func(c *config) {
		c.rows = rows
		c.cols = cols
	})
}

// WithDefaultTimeout sets the default Expect timeout. Default is 10s. Zero
// or a negative value keeps the 10s default; to wait forever, call
// SetExpectTimeout(nil) after spawn.
func WithDefaultTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.defaultTimeout = d
	})
}

// WithEnv appends to the spawned process's environment, which otherwise
// inherits os.Environ() unmodified.
func WithEnv(env []string) Option {
	return optionFunc(func(c *config) {
		c.env = append(c.env, env...)
	})
}

// WithDir sets the spawned process's working directory.
func WithDir(path string) Option {
	return optionFunc(func(c *config) {
		c.dir = path
	})
}

// WithLogger sets the structured logger used for operational events. A nil
// logger (the default) discards all output.
func WithLogger(log *logrus.Logger) Option {
	return optionFunc(func(c *config) {
		c.log = log
	})
}

func resolveOptions(opts []Option) *config {
	cfg := &config{
		rows:           24,
		cols:           80,
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return cfg
}
