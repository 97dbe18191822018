package localsocket

import (
	"context"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrAddressInUse is returned by Listen when another process is already
// serving on the socket path.
var ErrAddressInUse = errors.New("socket address already in use")

// staleDialTimeout bounds the dial used to detect a live socket at the listen path.
const staleDialTimeout = 200 * time.Millisecond

// Handler is the interface for handling session channels.
// Handle owns ch for the duration of the call; the server closes it afterwards.
// A returned error is logged and does not stop the server.
type Handler interface {
	Handle(ctx context.Context, ch *Channel) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ch *Channel) error

// Handle calls f(ctx, ch).
func (f HandlerFunc) Handle(ctx context.Context, ch *Channel) error {
	return f(ctx, ch)
}

// Server accepts session processes on a unix domain socket.
type Server struct {
	listener        *net.UnixListener
	path            string
	logger          Logger
	shutdownTimeout time.Duration
	maxSessions     int
	channelOpts     []Option

	mu          sync.Mutex
	shutdown    bool
	sessions    map[string]*Channel
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
// The logger is also handed to every channel unless ServerChannelOptions overrides it.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server keeps serving for up to this
// duration before closing the listener and any open session channels.
// Default is 0 (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerMaxSessionsOption limits the number of concurrently handled sessions.
// Accepting pauses while the limit is reached. Zero means no limit.
func ServerMaxSessionsOption(n int) ServerOption {
	return func(s *Server) {
		s.maxSessions = n
	}
}

// ServerChannelOptions sets the options used to wrap every accepted connection.
func ServerChannelOptions(opts ...Option) ServerOption {
	return func(s *Server) {
		s.channelOpts = append(s.channelOpts, opts...)
	}
}

// Listen creates a server bound to the unix socket at path.
// A socket file left behind by a dead process is removed first;
// if a live process still answers on it, ErrAddressInUse is returned.
func Listen(path string, opts ...ServerOption) (*Server, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, errors.Wrapf(err, "could not listen on %s", path)
	}

	s := &Server{
		listener:    listener,
		path:        path,
		logger:      slog.Default(),
		sessions:    make(map[string]*Channel),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "could not stat %s", path)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.Errorf("%s exists and is not a socket", path)
	}

	conn, err := net.DialTimeout("unix", path, staleDialTimeout)
	if err == nil {
		conn.Close()
		return errors.WithMessage(ErrAddressInUse, path)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove stale socket %s", path)
	}
	return nil
}

// Serve accepts connections, wraps each as a Channel and runs handler on
// its own goroutine. It blocks until the context is canceled or Close is
// called, then closes all open session channels and waits for their
// handlers to return.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.Addr())

	acceptCtx, stopAccepting := context.WithCancel(context.Background())
	defer stopAccepting()

	go func() {
		select {
		case <-ctx.Done():
		case <-acceptCtx.Done():
			return
		}

		// Wait for shutdown timeout if configured, but allow early exit via Close()
		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		stopAccepting()
		_ = s.listener.Close()
		// Unblocks handlers stuck in Receive, which may also be holding
		// the session limit that the accept loop is waiting on.
		s.closeSessions()
	}()

	var group errgroup.Group
	if s.maxSessions > 0 {
		group.SetLimit(s.maxSessions)
	}

	opts := append([]Option{LoggerOption(s.logger)}, s.channelOpts...)
	for conn := range Accept(acceptCtx, s.listener, s.logger) {
		ch := NewChannel(conn, opts...)
		if pid, ok := peerPID(conn); ok {
			s.logger.Debug("accepted connection", "channel", ch.ID(), "pid", pid)
		} else {
			s.logger.Debug("accepted connection", "channel", ch.ID())
		}

		if !s.track(ch) {
			ch.Close()
			break
		}
		group.Go(func() error {
			defer s.untrack(ch)
			if err := handler.Handle(ctx, ch); err != nil {
				s.logger.Info("session ended with error", "channel", ch.ID(), "error", err)
			} else {
				s.logger.Debug("session ended", "channel", ch.ID())
			}
			return nil
		})
	}

	s.closeSessions()
	_ = group.Wait()

	s.logger.Info("server stopped", "addr", s.Addr())
	return ctx.Err()
}

// track registers ch as an open session. It reports false once shutdown has begun.
func (s *Server) track(ch *Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return false
	}
	s.sessions[ch.ID()] = ch
	return true
}

func (s *Server) untrack(ch *Channel) {
	s.mu.Lock()
	delete(s.sessions, ch.ID())
	s.mu.Unlock()

	ch.Close()
}

// closeSessions closes every open channel so blocked Receive calls return.
func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdown = true
	for _, ch := range s.sessions {
		ch.Close()
	}
}

// Sessions returns the number of sessions currently being handled.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// Close stops the server by closing the underlying listener, which also
// removes the socket file, and closing every open session channel.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	// Signal to bypass any pending shutdown timeout
	select {
	case s.shutdownNow <- struct{}{}:
	default:
		// Channel already has a signal or no one is listening
	}

	err := s.listener.Close()
	// Handlers blocked in Receive may hold every session slot while the
	// accept loop waits in group.Go; closing their channels frees both.
	s.closeSessions()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Path returns the filesystem path of the socket.
func (s *Server) Path() string {
	return s.path
}
