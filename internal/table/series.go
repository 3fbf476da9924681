package table

import (
	"encoding/json"
	"math"
	"sort"
)

// Point is one labelled value of a Series. NaN marks a missing value and is
// persisted as JSON null.
type Point struct {
	Label string
	Value float64
}

type pointJSON struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
}

// MarshalJSON encodes NaN as null.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Label: p.Label, Value: NullFloat(p.Value)})
}

// UnmarshalJSON decodes null back to NaN.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Label = raw.Label
	p.Value = FromNull(raw.Value)
	return nil
}

// Series is an ordered row-key space for one column.
type Series []Point

// SeriesFromMap builds a Series with labels sorted ascending.
func SeriesFromMap(values map[string]float64) Series {
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(Series, 0, len(labels))
	for _, label := range labels {
		out = append(out, Point{Label: label, Value: values[label]})
	}
	return out
}

// Get returns the value for label. Missing labels and NaN values report false.
func (s Series) Get(label string) (float64, bool) {
	for _, p := range s {
		if p.Label == label {
			return p.Value, !math.IsNaN(p.Value)
		}
	}
	return math.NaN(), false
}

// Labels lists the row keys in order.
func (s Series) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

// Reindex returns a Series with exactly the given labels in the given order.
// Labels absent from s become NaN; labels not in order are dropped.
func (s Series) Reindex(order []string) Series {
	lookup := make(map[string]float64, len(s))
	for _, p := range s {
		lookup[p.Label] = p.Value
	}

	out := make(Series, len(order))
	for i, label := range order {
		v, ok := lookup[label]
		if !ok {
			v = math.NaN()
		}
		out[i] = Point{Label: label, Value: v}
	}
	return out
}

// NullFloat maps NaN to nil for JSON encoding.
func NullFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FromNull maps a nil pointer back to NaN.
func FromNull(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
