package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

// FTPOptions parameterise the FTP fetcher.
type FTPOptions struct {
	Host      string
	User      string
	Password  string
	Timeout   time.Duration
	ProxyHost string
	ProxyPort int
}

// FTP fetches files from the market operator's FTP server. The session is
// opened lazily and dropped after any transport failure so the next fetch
// redials.
type FTP struct {
	opts   FTPOptions
	logger zerolog.Logger

	mu     sync.Mutex
	conn   *ftp.ServerConn
	dialer *connDialer
}

// NewFTP constructs an FTP fetcher.
func NewFTP(opts FTPOptions, logger zerolog.Logger) *FTP {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &FTP{opts: opts, logger: logger.With().Str("component", "ftp_fetcher").Logger()}
}

func (f *FTP) addr() string {
	host := f.opts.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	return host
}

func (f *FTP) newDialer() *connDialer {
	dial := (&net.Dialer{Timeout: f.opts.Timeout}).Dial
	if f.opts.ProxyHost != "" {
		tunnel := &tunnelDialer{
			proxy:   net.JoinHostPort(f.opts.ProxyHost, fmt.Sprint(f.opts.ProxyPort)),
			timeout: f.opts.Timeout,
		}
		dial = tunnel.Dial
	}
	return newConnDialer(dial, f.opts.Timeout)
}

func (f *FTP) session() (*ftp.ServerConn, error) {
	if f.conn != nil {
		return f.conn, nil
	}
	if f.opts.Host == "" {
		return nil, fmt.Errorf("%w: ftp host not configured", ErrConnection)
	}

	conn, err := ftp.Dial(f.addr(), ftp.DialWithDialFunc(f.dialer.Dial))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, f.opts.Host, err)
	}
	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("%w: login %s: %v", ErrConnection, f.opts.Host, err)
	}

	f.logger.Info().Str("host", f.opts.Host).Msg("connected")
	f.conn = conn
	return conn, nil
}

// Fetch retrieves dir/name. Missing or unreadable files report ErrNotFound.
// Every socket operation is bounded by the configured timeout, and ctx
// cancellation aborts the session.
func (f *FTP) Fetch(ctx context.Context, dir, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	if f.conn == nil {
		f.dialer = f.newDialer()
	}
	stop := context.AfterFunc(ctx, f.dialer.abort)

	data, err := f.retrieve(dir, name)
	if !stop() {
		f.drop()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", err, context.Cause(ctx))
		}
	}
	return data, err
}

func (f *FTP) retrieve(dir, name string) ([]byte, error) {
	conn, err := f.session()
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(path.Join(dir, name))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		f.drop()
		return nil, fmt.Errorf("retrieve %s: %w", name, err)
	}

	data, readErr := io.ReadAll(resp)
	closeErr := resp.Close()
	if readErr != nil {
		f.drop()
		return nil, fmt.Errorf("read %s: %w", name, readErr)
	}
	if closeErr != nil {
		f.drop()
		return nil, fmt.Errorf("finish %s: %w", name, closeErr)
	}
	return data, nil
}

// Close ends the session if one is open.
func (f *FTP) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Quit()
	f.conn = nil
	return err
}

func (f *FTP) drop() {
	if f.conn == nil {
		return
	}
	_ = f.conn.Quit()
	f.conn = nil
}

// isNotFound matches the reply codes the server uses for a wrong guess:
// unavailable, permission denied or name not allowed.
func isNotFound(err error) bool {
	var perr *textproto.Error
	if !errors.As(err, &perr) {
		return false
	}
	switch perr.Code {
	case ftp.StatusFileActionIgnored, ftp.StatusFileUnavailable, ftp.StatusBadFileName:
		return true
	}
	return false
}

var _ FetchCloser = (*FTP)(nil)
