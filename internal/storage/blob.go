package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no blob has been saved under the requested name.
	ErrNotFound = errors.New("storage: blob not found")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// BlobStore persists opaque payloads by name. Save must be all-or-nothing:
// a concurrent Load observes either the previous payload or the new one.
type BlobStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}
