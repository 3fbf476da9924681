package fetcher

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"
)

// tunnelDialer opens TCP connections through an HTTP proxy using CONNECT.
// Both the FTP control and passive data connections go through it.
type tunnelDialer struct {
	proxy   string
	timeout time.Duration
}

func (d *tunnelDialer) Dial(network, address string) (net.Conn, error) {
	conn, err := net.DialTimeout(network, d.proxy, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", d.proxy, err)
	}
	if d.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.timeout))
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", address, address); err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy connect %s: %w", address, err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodConnect})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy response: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy refused %s: %s", address, resp.Status)
	}

	_ = conn.SetDeadline(time.Time{})
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn replays bytes read past the proxy response.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
