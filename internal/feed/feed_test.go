// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/aprs-relay/internal/logger"
)

const testFrame = "N0CALL-9>APRS,TCPIP*:!4201.00N/07600.00W>"

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelDebug, io.Discard)
}

func TestConfig_LoginLine(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		want string
	}{
		{
			"receive-only without filter",
			Config{Callsign: "N0CALL"},
			"user N0CALL pass -1 vers aprs-relay dev",
		},
		{
			"passcode and filter",
			Config{Callsign: "N0CALL", Passcode: "13023", Filter: "r/42/-76/50"},
			"user N0CALL pass 13023 vers aprs-relay dev filter r/42/-76/50",
		},
		{
			"blank filter is omitted",
			Config{Callsign: "N0CALL", Passcode: "-1", Filter: "  "},
			"user N0CALL pass -1 vers aprs-relay dev",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.conf.LoginLine(); got != tc.want {
				t.Errorf("expected login line %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDial(t *testing.T) {
	t.Run("dial sends login and streams frames", func(t *testing.T) {
		server := startMockServer(t, "# aprsc 2.1.19", testFrame)
		conn, err := Dial(t.Context(), Config{Server: server.addr, Callsign: "N0CALL", Filter: "b/N0CALL*"},
			testLogger())
		if err != nil {
			t.Fatalf("failed to dial mock server: %s", err)
		}
		defer func() {
			_ = conn.Close()
		}()
		if conn.Server() != server.addr {
			t.Errorf("expected server %s, got %s", server.addr, conn.Server())
		}

		reader := bufio.NewReader(conn.Reader())
		for _, want := range []string{"# aprsc 2.1.19", testFrame} {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("failed to read frame: %s", err)
			}
			if got := strings.TrimRight(line, "\r\n"); got != want {
				t.Errorf("expected frame %q, got %q", want, got)
			}
		}
		if got := server.login(); got != "user N0CALL pass -1 vers aprs-relay dev filter b/N0CALL*" {
			t.Errorf("unexpected login line %q", got)
		}
	})
	t.Run("dial without callsign fails", func(t *testing.T) {
		_, err := Dial(t.Context(), Config{Server: "localhost:1"}, testLogger())
		if !errors.Is(err, ErrMissingCallsign) {
			t.Errorf("expected error to be %s, got %v", ErrMissingCallsign, err)
		}
	})
	t.Run("dial to unreachable server fails", func(t *testing.T) {
		_, err := Dial(t.Context(), Config{Server: closedAddr(t), Callsign: "N0CALL"}, testLogger())
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if !strings.Contains(err.Error(), "failed to connect to APRS-IS server") {
			t.Errorf("unexpected error: %s", err)
		}
	})
	t.Run("dial with canceled context fails", func(t *testing.T) {
		server := startMockServer(t)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if _, err := Dial(ctx, Config{Server: server.addr, Callsign: "N0CALL"}, testLogger()); err == nil {
			t.Fatal("expected dial to fail with canceled context")
		}
	})
}

func TestRedial(t *testing.T) {
	t.Run("redial connects on first attempt", func(t *testing.T) {
		server := startMockServer(t, testFrame)
		conn, err := redial(t.Context(), Config{Server: server.addr, Callsign: "N0CALL"}, testLogger(), 3,
			time.Millisecond, time.Millisecond*5)
		if err != nil {
			t.Fatalf("failed to redial: %s", err)
		}
		_ = conn.Close()
	})
	t.Run("redial gives up after the configured attempts", func(t *testing.T) {
		buf := &syncBuffer{}
		log := logger.NewLogger(slog.LevelDebug, buf)
		_, err := redial(t.Context(), Config{Server: closedAddr(t), Callsign: "N0CALL"}, log, 3,
			time.Millisecond, time.Millisecond*5)
		if err == nil {
			t.Fatal("expected redial to fail")
		}
		if got := strings.Count(buf.String(), "retrying"); got != 2 {
			t.Errorf("expected 2 retry notifications, got %d", got)
		}
	})
	t.Run("missing callsign is not retried", func(t *testing.T) {
		buf := &syncBuffer{}
		log := logger.NewLogger(slog.LevelDebug, buf)
		_, err := redial(t.Context(), Config{Server: closedAddr(t)}, log, 5, time.Millisecond, time.Millisecond)
		if !errors.Is(err, ErrMissingCallsign) {
			t.Errorf("expected error to be %s, got %v", ErrMissingCallsign, err)
		}
		if strings.Contains(buf.String(), "retrying") {
			t.Error("expected no retries for a missing callsign")
		}
	})
}

func TestConn_Keepalive(t *testing.T) {
	t.Run("keepalive comments are written periodically", func(t *testing.T) {
		client, server := net.Pipe()
		defer func() {
			_ = server.Close()
		}()
		conn := &Conn{conn: client, logger: testLogger(), server: "pipe"}

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go conn.Keepalive(ctx, time.Millisecond*10)

		reader := bufio.NewReader(server)
		for i := 0; i < 2; i++ {
			_ = server.SetReadDeadline(time.Now().Add(time.Second * 2))
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("failed to read keepalive: %s", err)
			}
			if line != "# aprs-relay keepalive\r\n" {
				t.Errorf("unexpected keepalive line %q", line)
			}
		}
	})
	t.Run("keepalive write failures are logged", func(t *testing.T) {
		client, server := net.Pipe()
		_ = server.Close()
		buf := &syncBuffer{}
		conn := &Conn{conn: client, logger: logger.NewLogger(slog.LevelDebug, buf), server: "pipe"}

		ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*100)
		defer cancel()
		conn.Keepalive(ctx, time.Millisecond*10)
		// the last run may still be in flight when Keepalive returns
		time.Sleep(time.Millisecond * 20)
		if !strings.Contains(buf.String(), "failed to send keepalive") {
			t.Errorf("expected keepalive failure to be logged, got %q", buf.String())
		}
	})
}

func TestConn_Close(t *testing.T) {
	server := startMockServer(t)
	conn, err := Dial(t.Context(), Config{Server: server.addr, Callsign: "N0CALL"}, testLogger())
	if err != nil {
		t.Fatalf("failed to dial mock server: %s", err)
	}
	if err = conn.Close(); err != nil {
		t.Fatalf("failed to close connection: %s", err)
	}
	_, err = conn.Reader().Read(make([]byte, 1))
	if !errors.Is(err, net.ErrClosed) {
		t.Errorf("expected read after close to be %s, got %v", net.ErrClosed, err)
	}
}

type mockServer struct {
	addr string

	mu        sync.Mutex
	loginLine string
	loginRead chan struct{}
}

func (m *mockServer) login() string {
	select {
	case <-m.loginRead:
	case <-time.After(time.Second * 2):
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginLine
}

// startMockServer accepts a single connection, writes the given frames and records the login line.
func startMockServer(t *testing.T, frames ...string) *mockServer {
	t.Helper()

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen for mock APRS-IS server: %s", err)
	}
	server := &mockServer{addr: ln.Addr().String(), loginRead: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() {
			_ = conn.Close()
		}()

		for _, frame := range frames {
			if _, err = fmt.Fprintf(conn, "%s\r\n", frame); err != nil {
				t.Logf("failed to write mock frame: %s", err)
				return
			}
		}

		_ = conn.SetReadDeadline(time.Now().Add(time.Second * 2))
		line, err := bufio.NewReader(conn).ReadString('\n')
		server.mu.Lock()
		server.loginLine = strings.TrimRight(line, "\r\n")
		server.mu.Unlock()
		close(server.loginRead)
		if err != nil {
			return
		}
		// hold the connection open until the client disconnects
		_, _ = io.Copy(io.Discard, conn)
	}()

	t.Cleanup(func() {
		if closeErr := ln.Close(); closeErr != nil {
			t.Logf("failed to close mock APRS-IS listener: %s", closeErr)
		}
		wg.Wait()
	})
	return server
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %s", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
