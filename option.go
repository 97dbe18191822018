package localsocket

import (
	"time"
)

// options holds the configuration for a channel.
type options struct {
	logger Logger

	maxMessageSize int           // maximum size of a single frame, 0 means unbounded
	readTimeout    time.Duration // per-Receive read deadline, 0 means none
	writeTimeout   time.Duration // per-Send write deadline, 0 means none
}

// Option is a function that configures channel options.
type Option func(*options)

// MessageMaxSize returns an Option that caps the size of a single incoming frame.
// Frames larger than this size fail with ErrMessageTooLarge.
// Zero (the default) leaves frames bounded only by available memory.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxMessageSize = size
	}
}

// ReadTimeoutOption returns an Option that sets a read deadline before every Receive.
// Without it Receive blocks until a full line or end of stream is observed.
func ReadTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.readTimeout = timeout
	}
}

// WriteTimeoutOption returns an Option that sets a write deadline before every Send.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// checkOptions sets default values for channel options.
func checkOptions(opts *options) {
	if opts.maxMessageSize < 0 {
		opts.maxMessageSize = 0
	}
	if opts.readTimeout < 0 {
		opts.readTimeout = 0
	}
	if opts.writeTimeout < 0 {
		opts.writeTimeout = 0
	}
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}
