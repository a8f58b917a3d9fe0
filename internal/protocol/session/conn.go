package session

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/protocol/frame"
)

// Conn is a line-framed envelope transport over one net.Conn.
// Reads and writes are not synchronized; each side owns one reader and one
// writer at a time.
type Conn struct {
	raw   net.Conn
	r     *bufio.Reader
	cfg   Config
	woken atomic.Bool
}

func NewConn(raw net.Conn, cfg Config) *Conn {
	return &Conn{raw: raw, r: bufio.NewReader(raw), cfg: cfg}
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// SetReadDeadline wakes or bounds a blocked read.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

// Wake fails the current read and every later one immediately. The
// per-read ReadTimeout deadline never overrides it.
func (c *Conn) Wake() error {
	c.woken.Store(true)
	return c.raw.SetReadDeadline(time.Now())
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}

func (c *Conn) Close() error {
	return c.raw.Close()
}

// ReadCommand reads one line and decodes it. Decode failures wrap
// protocol.ErrMalformedEnvelope and leave the conn usable; any other error
// is a transport failure.
func (c *Conn) ReadCommand() (protocol.Command, error) {
	line, err := c.readLine()
	if err != nil {
		return protocol.Command{}, err
	}
	return protocol.DecodeCommand(line)
}

func (c *Conn) ReadResponse() (protocol.Response, error) {
	line, err := c.readLine()
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.DecodeResponse(line)
}

func (c *Conn) WriteCommand(cmd protocol.Command) error {
	line, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.writeLine(line)
}

func (c *Conn) WriteResponse(resp protocol.Response) error {
	line, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.writeLine(line)
}

func (c *Conn) readLine() ([]byte, error) {
	if c.cfg.ReadTimeout > 0 && !c.woken.Load() {
		if err := c.raw.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return nil, err
		}
		// Wake may have run between the check and the deadline above.
		if c.woken.Load() {
			if err := c.raw.SetReadDeadline(time.Now()); err != nil {
				return nil, err
			}
		}
	}
	return frame.ReadLine(c.r, c.cfg.Limits)
}

func (c *Conn) writeLine(line []byte) error {
	if c.cfg.WriteTimeout > 0 {
		if err := c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	return frame.WriteLine(c.raw, line, c.cfg.Limits)
}
