package localsocket

import (
	"bufio"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Channel exchanges newline-delimited JSON messages over one connection.
//
// A Channel exclusively owns its connection. Receive and Send are not
// synchronized: at most one Receive and one Send may be outstanding at a
// time, and callers sharing a Channel between goroutines must serialize
// access themselves.
type Channel struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader
	logger Logger
	opts   options

	// pending holds bytes already read from the connection that do not yet
	// form a complete frame. It survives a failed read (e.g. a deadline) so
	// a later Receive resumes the same frame.
	pending []byte
	closed  atomic.Bool
}

// NewChannel wraps an already connected stream.
func NewChannel(conn net.Conn, opt ...Option) *Channel {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	return &Channel{
		id:     uuid.NewString(),
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: opts.logger,
		opts:   opts,
	}
}

// ID returns the identifier assigned to this channel, used in log lines.
func (c *Channel) ID() string {
	return c.id
}

// RemoteAddr returns the remote address of the underlying connection.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Receive blocks until a full frame is read and decodes it into v.
//
// It returns ErrEmptyMessage if the stream ends before any byte arrives,
// a *TruncatedError if it ends mid-frame, and a *DecodingError if the line
// is not valid JSON for v. A decoding failure consumes the line, so the
// channel stays usable for the next frame. ErrMessageTooLarge closes the
// channel, since the rest of the oversized frame cannot be skipped reliably.
func (c *Channel) Receive(v any) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	if c.opts.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.readTimeout))
	}

	line, err := c.readLine()
	if err != nil {
		c.logger.Debug("read error", "channel", c.id, "error", err)
		return err
	}
	defer c.consume()

	if err := Decode(line, v); err != nil {
		c.logger.Debug("decode error", "channel", c.id, "error", err)
		return err
	}
	return nil
}

// readLine reads until the delimiter and returns the frame without it.
// The returned slice aliases c.pending and is valid until consume.
func (c *Channel) readLine() ([]byte, error) {
	for {
		chunk, err := c.reader.ReadSlice(Delimiter)
		if limit := c.opts.maxMessageSize; limit > 0 {
			size := len(c.pending) + len(chunk)
			if err == nil {
				size-- // terminator
			}
			if size > limit {
				// The rest of the frame is still unread; close so it is
				// never mistaken for the next frame.
				c.consume()
				_ = c.Close()
				return nil, ErrMessageTooLarge
			}
		}
		c.pending = append(c.pending, chunk...)

		switch {
		case err == nil:
			return c.pending[:len(c.pending)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			defer c.consume()
			if len(c.pending) == 0 {
				return nil, ErrEmptyMessage
			}
			return nil, &TruncatedError{Partial: string(c.pending)}
		default:
			return nil, &ReadError{Err: err}
		}
	}
}

// consume drops the current frame from the read buffer.
func (c *Channel) consume() {
	c.pending = c.pending[:0]
}

// Send encodes v and writes it as a single frame.
//
// The write is one call on the underlying connection; there is no
// acknowledgment beyond the OS accepting the bytes.
func (c *Channel) Send(v any) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	data, err := Frame(v)
	if err != nil {
		return err
	}

	if c.opts.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
	}

	if _, err := c.conn.Write(data); err != nil {
		werr := &WriteError{Attempted: string(data[:len(data)-1]), Err: err}
		c.logger.Debug("write error", "channel", c.id, "error", err)
		return werr
	}
	return nil
}

// Close closes the underlying connection. Safe to call multiple times.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	return c.conn.Close()
}

// IsClosed returns true if the channel has been closed.
func (c *Channel) IsClosed() bool {
	return c.closed.Load()
}

// Receive reads the next frame from c as a T.
func Receive[T any](c *Channel) (T, error) {
	var v T
	if err := c.Receive(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
