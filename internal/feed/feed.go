// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package feed maintains the TCP connection to an APRS-IS server.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wneessen/aprs-relay/internal/job"
	"github.com/wneessen/aprs-relay/internal/logger"
)

const (
	// DefaultServer is the APRS-IS rotation used when no server is configured.
	DefaultServer = "noam.aprs2.net:14580"

	// DefaultDialTimeout bounds establishing the TCP connection.
	DefaultDialTimeout = time.Second * 10

	// ReceiveOnlyPasscode is the APRS-IS passcode for unverified, receive-only logins.
	ReceiveOnlyPasscode = "-1"

	software     = "aprs-relay"
	writeTimeout = time.Second * 5

	initialRedialInterval = time.Second
	maxRedialInterval     = time.Minute
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"

	// ErrMissingCallsign is returned when no login callsign is configured.
	ErrMissingCallsign = errors.New("no login callsign configured")
)

// Config holds the connection settings for an APRS-IS server.
type Config struct {
	Server      string
	Callsign    string
	Passcode    string
	Filter      string
	DialTimeout time.Duration
	Keepalive   time.Duration
}

// LoginLine returns the login line sent to the server after connecting.
func (c Config) LoginLine() string {
	passcode := c.Passcode
	if passcode == "" {
		passcode = ReceiveOnlyPasscode
	}
	line := fmt.Sprintf("user %s pass %s vers %s %s", c.Callsign, passcode, software, version)
	if filter := strings.TrimSpace(c.Filter); filter != "" {
		line += " filter " + filter
	}
	return line
}

// Conn is an established and logged-in APRS-IS connection.
type Conn struct {
	conn   net.Conn
	logger *logger.Logger
	server string

	writeMu sync.Mutex
}

// Dial connects to the configured server and sends the login line.
func Dial(ctx context.Context, conf Config, log *logger.Logger) (*Conn, error) {
	if strings.TrimSpace(conf.Callsign) == "" {
		return nil, ErrMissingCallsign
	}
	server := conf.Server
	if server == "" {
		server = DefaultServer
	}
	timeout := conf.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to APRS-IS server %s: %w", server, err)
	}

	conn := &Conn{conn: netConn, logger: log, server: server}
	if err = conn.WriteLine(conf.LoginLine()); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("failed to send login to %s: %w", server, err)
	}
	log.Info("connected to APRS-IS server", slog.String("server", server),
		slog.String("callsign", conf.Callsign), slog.String("filter", conf.Filter))
	return conn, nil
}

// Redial calls Dial until it succeeds, the context is canceled or the number of attempts is
// exhausted. Between attempts it waits with exponential backoff.
func Redial(ctx context.Context, conf Config, log *logger.Logger, attempts uint) (*Conn, error) {
	return redial(ctx, conf, log, attempts, initialRedialInterval, maxRedialInterval)
}

func redial(ctx context.Context, conf Config, log *logger.Logger, attempts uint, initial, maxInterval time.Duration) (*Conn, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = initial
	expBackoff.MaxInterval = maxInterval

	operation := func() (*Conn, error) {
		conn, err := Dial(ctx, conf, log)
		if errors.Is(err, ErrMissingCallsign) {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	}
	notify := func(err error, next time.Duration) {
		log.Warn("failed to connect to APRS-IS server, retrying", logger.Err(err),
			slog.Duration("backoff", next))
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(notify),
	)
}

// Reader returns the inbound side of the connection.
func (c *Conn) Reader() io.Reader {
	return c.conn
}

// Server returns the address of the connected server.
func (c *Conn) Server() string {
	return c.server
}

// WriteLine writes a single CRLF-terminated line to the server. It is safe for concurrent use.
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := io.WriteString(c.conn, line+"\r\n"); err != nil {
		return fmt.Errorf("failed to write to APRS-IS server: %w", err)
	}
	return nil
}

// Keepalive periodically writes a comment line to the server until the context is canceled.
// A non-positive interval disables it.
func (c *Conn) Keepalive(ctx context.Context, interval time.Duration) {
	task := func(context.Context) error {
		return c.WriteLine("# " + software + " keepalive")
	}
	onError := func(err error) {
		c.logger.Warn("failed to send keepalive", logger.Err(err), slog.String("server", c.server))
	}
	job.New(interval, task, job.WithErrorHandler(onError)).Start(ctx)
}

// Close closes the connection. A blocked read on Reader returns with net.ErrClosed.
func (c *Conn) Close() error {
	return c.conn.Close()
}
