package fetcher

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var errAborted = errors.New("fetcher: session aborted")

// connDialer hands out connections whose every read and write is bounded by
// timeout. abort fails all of them at once.
type connDialer struct {
	dial    func(network, address string) (net.Conn, error)
	timeout time.Duration
	aborted atomic.Bool

	mu    sync.Mutex
	conns map[*deadlineConn]struct{}
}

func newConnDialer(dial func(network, address string) (net.Conn, error), timeout time.Duration) *connDialer {
	return &connDialer{dial: dial, timeout: timeout, conns: make(map[*deadlineConn]struct{})}
}

func (d *connDialer) Dial(network, address string) (net.Conn, error) {
	if d.aborted.Load() {
		return nil, errAborted
	}
	conn, err := d.dial(network, address)
	if err != nil {
		return nil, err
	}

	dc := &deadlineConn{Conn: conn, owner: d}
	d.mu.Lock()
	d.conns[dc] = struct{}{}
	d.mu.Unlock()

	if d.aborted.Load() {
		_ = dc.Close()
		return nil, errAborted
	}
	return dc, nil
}

func (d *connDialer) abort() {
	d.aborted.Store(true)
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := range d.conns {
		_ = c.Conn.SetDeadline(time.Now())
	}
}

func (d *connDialer) forget(c *deadlineConn) {
	d.mu.Lock()
	delete(d.conns, c)
	d.mu.Unlock()
}

// deadlineConn moves the deadline forward before each operation.
type deadlineConn struct {
	net.Conn
	owner *connDialer
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.owner.aborted.Load() {
		return 0, errAborted
	}
	if c.owner.timeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.owner.timeout))
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.owner.aborted.Load() {
		return 0, errAborted
	}
	if c.owner.timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.owner.timeout))
	}
	return c.Conn.Write(p)
}

func (c *deadlineConn) Close() error {
	c.owner.forget(c)
	return c.Conn.Close()
}
