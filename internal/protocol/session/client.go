package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrClientClosed = errors.New("session: client closed")

// Client is the caller side of one broker session. Do is serialized so at
// most one request is outstanding.
type Client struct {
	mu       sync.Mutex
	conn     *Conn
	greeting protocol.Response
	closed   atomic.Bool
}

// Dial connects to addr, retrying with backoff up to cfg.MaxConnectAttempts,
// and reads the server greeting.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	attempts := cfg.MaxConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return newClient(raw, cfg)
		}
		lastErr = err
		log.Debug().Str("addr", addr).Int("attempt", attempt).Err(err).Msg("session.Dial failed")
		if attempt == attempts {
			break
		}
		wait := time.NewTimer(NextBackoffDelay(cfg.Backoff, attempt, rng))
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, ctx.Err()
		case <-wait.C:
		}
	}
	return nil, fmt.Errorf("session: dial %s after %d attempt(s): %w", addr, attempts, lastErr)
}

func newClient(raw net.Conn, cfg Config) (*Client, error) {
	conn := NewConn(raw, cfg)
	if cfg.ConnectTimeout > 0 {
		_ = raw.SetReadDeadline(time.Now().Add(cfg.ConnectTimeout))
	}
	greeting, err := conn.ReadResponse()
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("session: read greeting: %w", err)
	}
	_ = raw.SetReadDeadline(time.Time{})
	return &Client{conn: conn, greeting: greeting}, nil
}

// Greeting returns the unsolicited response read during Dial.
func (c *Client) Greeting() protocol.Response {
	return c.greeting
}

func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Do writes cmd and blocks for exactly one response. Cancelling ctx aborts
// the exchange and leaves the client unusable.
func (c *Client) Do(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return protocol.Response{}, ErrClientClosed
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteCommand(cmd); err != nil {
		return protocol.Response{}, c.wrapErr(ctx, "write command", err)
	}
	resp, err := c.conn.ReadResponse()
	if err != nil {
		return protocol.Response{}, c.wrapErr(ctx, "read response", err)
	}
	return resp, nil
}

func (c *Client) wrapErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("session: %s: %w", op, err)
}

// Close is safe to call while Do is blocked; the pending Do fails.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
