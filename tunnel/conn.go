package tunnel

import (
	"net"
	"sync/atomic"
)

// CountingConn wraps a net.Conn and counts bytes moved in each direction.
// Forwarders wrap their tunnel stream in one so transfer totals survive the
// stream teardown.
type CountingConn struct {
	net.Conn
	ingress atomic.Uint64
	egress  atomic.Uint64
}

func NewCountingConn(conn net.Conn) *CountingConn {
	return &CountingConn{Conn: conn}
}

func (c *CountingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.ingress.Add(uint64(n))
	}
	return n, err
}

func (c *CountingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.egress.Add(uint64(n))
	}
	return n, err
}

// Ingress is the number of bytes read from the wrapped conn.
func (c *CountingConn) Ingress() uint64 {
	return c.ingress.Load()
}

// Egress is the number of bytes written to the wrapped conn.
func (c *CountingConn) Egress() uint64 {
	return c.egress.Load()
}
