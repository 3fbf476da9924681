package fetcher

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTPMissingHost(t *testing.T) {
	f := NewFTP(FTPOptions{}, noopLogger())
	_, err := f.Fetch(context.Background(), "/public/", "x.csv.gz")
	require.ErrorIs(t, err, ErrConnection)
	assert.NoError(t, f.Close())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&textproto.Error{Code: 550, Msg: "No such file"}))
	assert.True(t, isNotFound(&textproto.Error{Code: 553, Msg: "not allowed"}))
	assert.False(t, isNotFound(&textproto.Error{Code: 421, Msg: "closing"}))
	assert.False(t, isNotFound(io.EOF))
}

func TestTunnelDialerConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	gotTarget := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		gotTarget <- req.Host
		_, _ = io.WriteString(conn, "HTTP/1.1 200 Connection established\r\n\r\n220 ready\r\n")
	}()

	d := &tunnelDialer{proxy: ln.Addr().String(), timeout: time.Second}
	conn, err := d.Dial("tcp", "ftp.example.nz:21")
	require.NoError(t, err)
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "220 ready\r\n", line)
	assert.Equal(t, "ftp.example.nz:21", <-gotTarget)
}

func TestTunnelDialerRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = http.ReadRequest(bufio.NewReader(conn))
		_, _ = io.WriteString(conn, "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n")
	}()

	d := &tunnelDialer{proxy: ln.Addr().String(), timeout: time.Second}
	_, err = d.Dial("tcp", "ftp.example.nz:21")
	assert.Error(t, err)
}

// stallingServer greets every client and then never answers.
func stallingServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		ln.Close()
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.WriteString(conn, "220 ready\r\n")
				<-done
			}()
		}
	}()
	return ln.Addr().String()
}

func fetchAsync(ctx context.Context, f *FTP) <-chan error {
	out := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "/5minprices/", "5minprices_20261018122030.csv.gz")
		out <- err
	}()
	return out
}

func TestFTPTimeoutBoundsStalledServer(t *testing.T) {
	f := NewFTP(FTPOptions{Host: stallingServer(t), Timeout: 300 * time.Millisecond}, noopLogger())

	select {
	case err := <-fetchAsync(context.Background(), f):
		require.ErrorIs(t, err, ErrConnection)
	case <-time.After(3 * time.Second):
		t.Fatal("fetch blocked past the configured timeout")
	}
	assert.NoError(t, f.Close())
}

func TestFTPContextCancelAbortsSession(t *testing.T) {
	f := NewFTP(FTPOptions{Host: stallingServer(t), Timeout: time.Minute}, noopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	select {
	case err := <-fetchAsync(ctx, f):
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("fetch ignored context cancellation")
	}

	_, err := f.Fetch(ctx, "/5minprices/", "x.csv.gz")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeadlineConnAbortFailsReads(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	d := newConnDialer(func(string, string) (net.Conn, error) { return client, nil }, time.Minute)
	conn, err := d.Dial("tcp", "ignored:21")
	require.NoError(t, err)

	d.abort()
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errAborted)

	_, err = d.Dial("tcp", "ignored:21")
	assert.ErrorIs(t, err, errAborted)
	assert.NoError(t, conn.Close())
}
