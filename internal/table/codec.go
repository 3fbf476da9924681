package table

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"witswatch/internal/storage"
)

// Encode serialises a table as gzip-compressed JSON.
func Encode[T any](t *Table[T]) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(t); err != nil {
		zw.Close()
		return nil, fmt.Errorf("encode %s: %w", t.Name, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode[T any](name string, data []byte) (*Table[T], error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}

	t := New[T](name)
	if err := json.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	t.Name = name
	sort.SliceStable(t.Columns, func(i, j int) bool {
		return t.Columns[i].Key.Compare(t.Columns[j].Key) < 0
	})
	return t, nil
}

// Load reads a named table, returning an empty table when nothing has been
// saved under that name yet.
func Load[T any](ctx context.Context, store storage.BlobStore, name string) (*Table[T], error) {
	data, err := store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return New[T](name), nil
		}
		return nil, err
	}
	return Decode[T](name, data)
}

// Save persists a table under its name.
func Save[T any](ctx context.Context, store storage.BlobStore, t *Table[T]) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	return store.Save(ctx, t.Name, data)
}
