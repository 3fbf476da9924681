package fetcher

import (
	"context"
	"errors"
)

var (
	// ErrNotFound marks the expected miss when a guessed filename does not
	// exist or is not readable.
	ErrNotFound = errors.New("fetcher: file not found")
	// ErrConnection indicates the remote source could not be reached or
	// refused the login.
	ErrConnection = errors.New("fetcher: connection failed")
)

// Fetcher retrieves one remote file.
type Fetcher interface {
	Fetch(ctx context.Context, dir, name string) ([]byte, error)
}

// FetchCloser is a Fetcher holding a session that must be released.
type FetchCloser interface {
	Fetcher
	Close() error
}
