package tcpserver

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/go-sqlio/token"
)

// Conn is one accepted TCP connection as held by the registry. Reads happen
// on the connection's reader goroutine; writes go through Send, which the
// registry serializes.
type Conn struct {
	remote   net.Addr
	conn     net.Conn
	accepted time.Time
	seq      uint64

	closeOnce sync.Once
	closeErr  error
}

func newConn(c net.Conn, seq uint64) *Conn {
	return &Conn{
		remote:   c.RemoteAddr(),
		conn:     c,
		accepted: time.Now(),
		seq:      seq,
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}

// Send writes all of data to the peer, blocking until it is written or the
// write fails.
func (c *Conn) Send(data []byte) error {
	for len(data) > 0 {
		n, err := c.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}

	return nil
}

// Close closes the socket. It is safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

// ConnInfo describes a live connection for introspection.
type ConnInfo struct {
	Token      token.Token
	RemoteAddr string
	Accepted   time.Time
}

func (i ConnInfo) String() string {
	return fmt.Sprintf("%s %s", i.Token, i.RemoteAddr)
}
