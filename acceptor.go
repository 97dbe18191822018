package localsocket

import (
	"context"
	"iter"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Backoff bounds for consecutive accept failures.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Filter turns a sequence of connection attempts into a sequence of live
// connections. Failed attempts are logged and skipped; a single bad inbound
// attempt never ends the sequence.
func Filter(attempts iter.Seq2[net.Conn, error], logger Logger) iter.Seq[net.Conn] {
	if logger == nil {
		logger = defaultLogger()
	}
	return func(yield func(net.Conn) bool) {
		for conn, err := range attempts {
			if err != nil {
				logger.Error("incoming connection failed", "error", err)
				continue
			}
			if !yield(conn) {
				return
			}
		}
	}
}

// Attempts adapts a listener into a lazy sequence of connection attempts.
// The sequence ends when ctx is done or the listener is closed.
// Consecutive failures are spaced by an exponential backoff.
func Attempts(ctx context.Context, l net.Listener) iter.Seq2[net.Conn, error] {
	return func(yield func(net.Conn, error) bool) {
		var backoff time.Duration
		for {
			if ctx.Err() != nil {
				return
			}

			conn, err := l.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
					return
				}
				if !yield(nil, err) {
					return
				}

				if backoff == 0 {
					backoff = minAcceptBackoff
				} else if backoff *= 2; backoff > maxAcceptBackoff {
					backoff = maxAcceptBackoff
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				continue
			}

			backoff = 0
			if !yield(conn, nil) {
				return
			}
		}
	}
}

// Accept yields live connections from l until ctx is done or l is closed.
func Accept(ctx context.Context, l net.Listener, logger Logger) iter.Seq[net.Conn] {
	return Filter(Attempts(ctx, l), logger)
}
