package table

import (
	"math"
	"strconv"
	"time"
)

// Frame is a dense, row-per-interval view of a Series table used for exports.
type Frame struct {
	Labels []string
	Rows   []FrameRow
}

// FrameRow holds one timestamp's values aligned with Frame.Labels.
type FrameRow struct {
	Time          time.Time
	TradingPeriod int
	Values        []float64
}

// Labels returns the union of row keys across all columns in first-seen order.
func Labels(t *Table[Series]) []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, col := range t.Columns {
		for _, p := range col.Value {
			if _, ok := seen[p.Label]; ok {
				continue
			}
			seen[p.Label] = struct{}{}
			labels = append(labels, p.Label)
		}
	}
	return labels
}

func align(labels []string, s Series) []float64 {
	values := make([]float64, len(labels))
	for i, label := range labels {
		v, ok := s.Get(label)
		if !ok {
			v = 0
		}
		values[i] = v
	}
	return values
}

// Resample lays the table out at a fixed step from its first to its last
// column. Missing intervals and missing values are filled with zero; filler
// rows carry trading period 0.
func Resample(t *Table[Series], step time.Duration) Frame {
	labels := Labels(t)
	frame := Frame{Labels: labels}
	if len(t.Columns) == 0 || step <= 0 {
		return frame
	}

	first := t.Columns[0].Key.Time
	last := t.Columns[len(t.Columns)-1].Key.Time
	idx := 0
	for ts := first; !ts.After(last); ts = ts.Add(step) {
		row := FrameRow{Time: ts}
		for idx < len(t.Columns) && t.Columns[idx].Key.Time.Before(ts) {
			idx++
		}
		if idx < len(t.Columns) && t.Columns[idx].Key.Time.Equal(ts) {
			row.TradingPeriod = t.Columns[idx].Key.TradingPeriod
			row.Values = align(labels, t.Columns[idx].Value)
			idx++
		} else {
			row.Values = make([]float64, len(labels))
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame
}

// ByTradingPeriod averages every column sharing a calendar date and trading
// period. Missing values count as zero. Row times are midnight of the date in
// the column's location.
func ByTradingPeriod(t *Table[Series]) Frame {
	labels := Labels(t)
	frame := Frame{Labels: labels}

	type group struct {
		row   FrameRow
		count int
	}
	var groups []*group
	index := make(map[string]*group)

	for _, col := range t.Columns {
		ts := col.Key.Time
		date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		id := date.Format("2006-01-02") + "/" + strconv.Itoa(col.Key.TradingPeriod)

		g, ok := index[id]
		if !ok {
			g = &group{row: FrameRow{Time: date, TradingPeriod: col.Key.TradingPeriod, Values: make([]float64, len(labels))}}
			index[id] = g
			groups = append(groups, g)
		}
		for i, v := range align(labels, col.Value) {
			g.row.Values[i] += v
		}
		g.count++
	}

	for _, g := range groups {
		for i := range g.row.Values {
			g.row.Values[i] /= float64(g.count)
		}
		frame.Rows = append(frame.Rows, g.row)
	}
	return frame
}

// Column returns the values of one label across all rows.
func (f Frame) Column(label string) []float64 {
	pos := -1
	for i, l := range f.Labels {
		if l == label {
			pos = i
			break
		}
	}
	out := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		if pos < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = row.Values[pos]
	}
	return out
}

// Series returns row i as a labelled series.
func (f Frame) Series(i int) Series {
	if i < 0 || i >= len(f.Rows) {
		return nil
	}
	out := make(Series, len(f.Labels))
	for j, label := range f.Labels {
		out[j] = Point{Label: label, Value: f.Rows[i].Values[j]}
	}
	return out
}

// Tail keeps at most the last n rows. A non-positive n keeps everything.
func (f Frame) Tail(n int) Frame {
	if n <= 0 || n >= len(f.Rows) {
		return f
	}
	return Frame{Labels: f.Labels, Rows: f.Rows[len(f.Rows)-n:]}
}
