package localsocket

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// testSocketPath returns a short socket path; unix socket paths are limited
// to about 100 bytes so t.TempDir() can be too long.
func testSocketPath(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "lsock")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

// createTestUnixPair creates a connected pair of unix socket connections for testing
func createTestUnixPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	listener, err := net.Listen("unix", testSocketPath(t))
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	clientChan := make(chan net.Conn, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := net.Dial("unix", listener.Addr().String())
		if err != nil {
			errChan <- err
			return
		}
		clientChan <- conn
	}()

	serverConn, err := listener.Accept()
	if err != nil {
		t.Fatalf("failed to accept: %v", err)
	}

	select {
	case clientConn := <-clientChan:
		t.Cleanup(func() {
			serverConn.Close()
			clientConn.Close()
		})
		return serverConn, clientConn
	case err := <-errChan:
		serverConn.Close()
		t.Fatalf("client dial failed: %v", err)
		return nil, nil
	case <-time.After(5 * time.Second):
		serverConn.Close()
		t.Fatal("timeout waiting for client connection")
		return nil, nil
	}
}

func TestNewChannel(t *testing.T) {
	serverConn, _ := createTestUnixPair(t)

	ch := NewChannel(serverConn)
	if ch.conn != serverConn {
		t.Error("conn not set correctly")
	}
	if ch.ID() == "" {
		t.Error("channel has no id")
	}
	if len(ch.pending) != 0 {
		t.Errorf("pending = %q, want empty", ch.pending)
	}
	if ch.RemoteAddr() == nil {
		t.Error("RemoteAddr returned nil")
	}
}

func TestNewChannel_UniqueIDs(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)

	a := NewChannel(serverConn)
	b := NewChannel(clientConn)
	if a.ID() == b.ID() {
		t.Errorf("channels share id %s", a.ID())
	}
}

func TestChannel_SendReceive_FIFO(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)
	client := NewChannel(clientConn)

	first := testMessage{Kind: "first", Count: 1}
	second := testMessage{Kind: "second", Text: "with\nnewline"}

	if err := client.Send(first); err != nil {
		t.Fatalf("Send first failed: %v", err)
	}
	if err := client.Send(second); err != nil {
		t.Fatalf("Send second failed: %v", err)
	}

	got1, err := Receive[testMessage](server)
	if err != nil {
		t.Fatalf("Receive first failed: %v", err)
	}
	got2, err := Receive[testMessage](server)
	if err != nil {
		t.Fatalf("Receive second failed: %v", err)
	}

	if got1.Kind != "first" || got1.Count != 1 {
		t.Errorf("first = %+v, want %+v", got1, first)
	}
	if got2.Kind != "second" || got2.Text != second.Text {
		t.Errorf("second = %+v, want %+v", got2, second)
	}
}

func TestChannel_Duplex(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)
	client := NewChannel(clientConn)

	if err := client.Send(testMessage{Kind: "ping"}); err != nil {
		t.Fatalf("client Send failed: %v", err)
	}
	req, err := Receive[testMessage](server)
	if err != nil {
		t.Fatalf("server Receive failed: %v", err)
	}
	if err := server.Send(testMessage{Kind: "pong", Text: req.Kind}); err != nil {
		t.Fatalf("server Send failed: %v", err)
	}
	resp, err := Receive[testMessage](client)
	if err != nil {
		t.Fatalf("client Receive failed: %v", err)
	}
	if resp.Kind != "pong" || resp.Text != "ping" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestChannel_Receive_EmptyMessage(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)

	clientConn.Close()

	var m testMessage
	err := server.Receive(&m)
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if !errors.Is(err, ErrPeerClosed) {
		t.Error("ErrEmptyMessage should match ErrPeerClosed")
	}
	if errors.Is(err, ErrTruncatedMessage) {
		t.Error("ErrEmptyMessage should not match ErrTruncatedMessage")
	}
}

func TestChannel_Receive_Truncated(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)

	if _, err := clientConn.Write([]byte(`{"kind":"hel`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	clientConn.Close()

	var m testMessage
	err := server.Receive(&m)

	var truncErr *TruncatedError
	if !errors.As(err, &truncErr) {
		t.Fatalf("expected *TruncatedError, got %v", err)
	}
	if truncErr.Partial != `{"kind":"hel` {
		t.Errorf("Partial = %q", truncErr.Partial)
	}
	if !errors.Is(err, ErrTruncatedMessage) || !errors.Is(err, ErrPeerClosed) {
		t.Error("TruncatedError should match ErrTruncatedMessage and ErrPeerClosed")
	}
	if m.Kind != "" {
		t.Errorf("partial frame was decoded into %+v", m)
	}

	// The buffer was dropped, so the next read sees a clean end of stream.
	if err := server.Receive(&m); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage after truncation, got %v", err)
	}
}

func TestChannel_Receive_MalformedThenValid(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)

	if _, err := clientConn.Write([]byte("not json\n{\"kind\":\"ok\"}\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var m testMessage
	err := server.Receive(&m)

	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodingError, got %v", err)
	}
	if decErr.Raw != "not json" {
		t.Errorf("Raw = %q, want %q", decErr.Raw, "not json")
	}

	m, err = Receive[testMessage](server)
	if err != nil {
		t.Fatalf("Receive after malformed line failed: %v", err)
	}
	if m.Kind != "ok" {
		t.Errorf("Kind = %q, want ok", m.Kind)
	}
}

func TestChannel_Receive_PartialWrites(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)

	go func() {
		for _, part := range []string{`{"ki`, `nd":"sp`, `lit"}`, "\n"} {
			clientConn.Write([]byte(part))
			time.Sleep(10 * time.Millisecond)
		}
	}()

	m, err := Receive[testMessage](server)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if m.Kind != "split" {
		t.Errorf("Kind = %q, want split", m.Kind)
	}
}

func TestChannel_Receive_LargeMessage(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn)
	client := NewChannel(clientConn)

	text := strings.Repeat("type Query { field: String }\n", 10000)
	go client.Send(testMessage{Kind: "sdl", Text: text})

	m, err := Receive[testMessage](server)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if m.Text != text {
		t.Errorf("Text length = %d, want %d", len(m.Text), len(text))
	}
}

func TestChannel_Receive_MessageTooLarge(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn, MessageMaxSize(8))

	if _, err := clientConn.Write([]byte(`{"a":12}` + "\n" + `{"a":123}` + "\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var v map[string]int
	if err := server.Receive(&v); err != nil {
		t.Fatalf("frame at the limit should be accepted: %v", err)
	}
	if v["a"] != 12 {
		t.Errorf("a = %d, want 12", v["a"])
	}

	if err := server.Receive(&v); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if !server.IsClosed() {
		t.Error("channel still open after oversized frame")
	}
	if err := server.Receive(&v); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed after oversized frame, got %v", err)
	}
}

func TestChannel_Receive_MessageTooLargeSpansReads(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn, MessageMaxSize(8))

	if _, err := clientConn.Write([]byte(`{"pad":"` + strings.Repeat("x", 4096) + `",` + "\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var v map[string]any
	if err := server.Receive(&v); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if err := server.Receive(&v); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestChannel_Receive_TimeoutKeepsPartialFrame(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	server := NewChannel(serverConn, ReadTimeoutOption(50*time.Millisecond))

	if _, err := clientConn.Write([]byte(`{"kind":`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var m testMessage
	err := server.Receive(&m)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected *ReadError, got %v", err)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("expected timeout, got %v", err)
	}

	if _, err := clientConn.Write([]byte(`"resumed"}` + "\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := server.Receive(&m); err != nil {
		t.Fatalf("Receive after timeout failed: %v", err)
	}
	if m.Kind != "resumed" {
		t.Errorf("Kind = %q, want resumed", m.Kind)
	}
}

func TestChannel_Send_EncodingError(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	client := NewChannel(clientConn)

	err := client.Send(map[string]any{"bad": make(chan int)})

	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodingError, got %v", err)
	}

	// Nothing reached the peer; the next valid frame is the first one seen.
	if err := client.Send(testMessage{Kind: "after"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	m, err := Receive[testMessage](NewChannel(serverConn))
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if m.Kind != "after" {
		t.Errorf("Kind = %q, want after", m.Kind)
	}
}

func TestChannel_Send_WriteError(t *testing.T) {
	_, clientConn := createTestUnixPair(t)
	client := NewChannel(clientConn)

	// Close underneath the channel so the write itself fails.
	clientConn.Close()

	err := client.Send(testMessage{Kind: "lost"})

	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if writeErr.Attempted != `{"kind":"lost"}` {
		t.Errorf("Attempted = %q", writeErr.Attempted)
	}
}

func TestChannel_Close(t *testing.T) {
	serverConn, _ := createTestUnixPair(t)
	ch := NewChannel(serverConn)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !ch.IsClosed() {
		t.Error("IsClosed = false after Close")
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	var m testMessage
	if err := ch.Receive(&m); err != ErrConnectionClosed {
		t.Errorf("Receive after Close = %v, want ErrConnectionClosed", err)
	}
	if err := ch.Send(m); err != ErrConnectionClosed {
		t.Errorf("Send after Close = %v, want ErrConnectionClosed", err)
	}
}

func TestChannel_LogsDecodeError(t *testing.T) {
	serverConn, clientConn := createTestUnixPair(t)
	logger := &mockLogger{}
	server := NewChannel(serverConn, LoggerOption(logger))

	clientConn.Write([]byte("{\n"))

	var m testMessage
	if err := server.Receive(&m); err == nil {
		t.Fatal("expected error")
	}
	if logger.count("debug") != 1 {
		t.Errorf("debug entries = %d, want 1", logger.count("debug"))
	}
}
