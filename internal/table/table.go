package table

import (
	"sort"
	"time"
)

// Retention bounds how far behind the latest column a table keeps data.
type Retention struct {
	Days  int `mapstructure:"days"`
	Hours int `mapstructure:"hours"`
}

// Duration converts the retention window to a time.Duration.
func (r Retention) Duration() time.Duration {
	return time.Duration(r.Days)*24*time.Hour + time.Duration(r.Hours)*time.Hour
}

// Column is one interval's worth of values.
type Column[T any] struct {
	Key   Key `json:"key"`
	Value T   `json:"value"`
}

// Table is an append-only column store keyed by Key. Columns are always held
// in ascending key order.
type Table[T any] struct {
	Name    string      `json:"name"`
	Columns []Column[T] `json:"columns"`
}

// New returns an empty table.
func New[T any](name string) *Table[T] {
	return &Table[T]{Name: name}
}

// Len reports the number of columns.
func (t *Table[T]) Len() int {
	return len(t.Columns)
}

func (t *Table[T]) search(key Key) int {
	return sort.Search(len(t.Columns), func(i int) bool {
		return t.Columns[i].Key.Compare(key) >= 0
	})
}

// Has reports whether a column exists for key.
func (t *Table[T]) Has(key Key) bool {
	i := t.search(key)
	return i < len(t.Columns) && t.Columns[i].Key.Equal(key)
}

// Get returns the column value for key.
func (t *Table[T]) Get(key Key) (T, bool) {
	i := t.search(key)
	if i < len(t.Columns) && t.Columns[i].Key.Equal(key) {
		return t.Columns[i].Value, true
	}
	var zero T
	return zero, false
}

// Append inserts a column in key order. It is a no-op returning false when
// the key is already present.
func (t *Table[T]) Append(key Key, value T) bool {
	i := t.search(key)
	if i < len(t.Columns) && t.Columns[i].Key.Equal(key) {
		return false
	}
	t.Columns = append(t.Columns, Column[T]{})
	copy(t.Columns[i+1:], t.Columns[i:])
	t.Columns[i] = Column[T]{Key: key, Value: value}
	return true
}

// Put inserts or replaces the column for key.
func (t *Table[T]) Put(key Key, value T) {
	i := t.search(key)
	if i < len(t.Columns) && t.Columns[i].Key.Equal(key) {
		t.Columns[i].Value = value
		return
	}
	t.Append(key, value)
}

// Remove deletes the column for key and reports whether it existed.
func (t *Table[T]) Remove(key Key) bool {
	i := t.search(key)
	if i >= len(t.Columns) || !t.Columns[i].Key.Equal(key) {
		return false
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	return true
}

// Latest returns the column with the greatest key.
func (t *Table[T]) Latest() (Column[T], bool) {
	if len(t.Columns) == 0 {
		return Column[T]{}, false
	}
	return t.Columns[len(t.Columns)-1], true
}

// Tail returns up to n most recent columns, oldest first.
func (t *Table[T]) Tail(n int) []Column[T] {
	if n <= 0 || n >= len(t.Columns) {
		return t.Columns
	}
	return t.Columns[len(t.Columns)-n:]
}

// Crop removes every column strictly older than the latest timestamp minus
// the retention window and returns the number removed. The latest column is
// never removed.
func (t *Table[T]) Crop(r Retention) int {
	latest, ok := t.Latest()
	if !ok {
		return 0
	}
	cutoff := latest.Key.Time.Add(-r.Duration())
	first := sort.Search(len(t.Columns), func(i int) bool {
		return !t.Columns[i].Key.Time.Before(cutoff)
	})
	if first == 0 {
		return 0
	}
	t.Columns = append(t.Columns[:0:0], t.Columns[first:]...)
	return first
}

// Reindex applies a fixed row order to every column of a Series table.
func Reindex(t *Table[Series], order []string) {
	for i := range t.Columns {
		t.Columns[i].Value = t.Columns[i].Value.Reindex(order)
	}
}
