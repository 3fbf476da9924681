package table

import (
	"fmt"
	"time"
)

// Key identifies one five-minute interval column: its timestamp and the
// trading period the market published it under.
type Key struct {
	Time          time.Time `json:"time"`
	TradingPeriod int       `json:"tp"`
}

// NewKey builds a Key.
func NewKey(ts time.Time, tp int) Key {
	return Key{Time: ts, TradingPeriod: tp}
}

// Compare orders keys by timestamp, then trading period.
func (k Key) Compare(other Key) int {
	switch {
	case k.Time.Before(other.Time):
		return -1
	case k.Time.After(other.Time):
		return 1
	case k.TradingPeriod < other.TradingPeriod:
		return -1
	case k.TradingPeriod > other.TradingPeriod:
		return 1
	default:
		return 0
	}
}

// Equal reports whether both keys name the same interval.
func (k Key) Equal(other Key) bool {
	return k.Compare(other) == 0
}

// IsZero reports whether the key was never set.
func (k Key) IsZero() bool {
	return k.Time.IsZero() && k.TradingPeriod == 0
}

func (k Key) String() string {
	return fmt.Sprintf("%s/TP%d", k.Time.Format("2006-01-02 15:04"), k.TradingPeriod)
}
