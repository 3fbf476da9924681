package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"witswatch/internal/market"
	"witswatch/internal/table"
)

// Set is the group of rolling tables the derived files are built from.
type Set struct {
	Nodes   *table.Table[table.Series]
	Regions *table.Table[table.Series]
	Islands *table.Table[table.Series]
	Stats   *table.Table[market.Stats]
}

// Writer renders derived CSV files, and optionally a chart, into a directory.
type Writer struct {
	dir     string
	png     bool
	maxRows int
	logger  zerolog.Logger
}

// NewWriter builds a writer. maxRows bounds each resampled file; zero keeps
// every row.
func NewWriter(dir string, png bool, maxRows int, logger zerolog.Logger) *Writer {
	return &Writer{dir: dir, png: png, maxRows: maxRows, logger: logger.With().Str("component", "export").Logger()}
}

const timeLayout = "2006-01-02 15:04:05"

// Export writes every derived file. Files are replaced atomically.
func (w *Writer) Export(ctx context.Context, set Set) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	islandWeek := table.Resample(set.Islands, market.IntervalLength).Tail(w.maxRows)
	jobs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"all_week.csv", frameCSV(table.Resample(set.Nodes, market.IntervalLength).Tail(w.maxRows), "timestamp")},
		{"region_week.csv", frameCSV(table.Resample(set.Regions, market.IntervalLength).Tail(w.maxRows), "timestamp")},
		{"island_week.csv", frameCSV(islandWeek, "timestamp")},
		{"all_week_bytp.csv", frameCSV(table.ByTradingPeriod(set.Nodes), "date")},
		{"region_week_bytp.csv", frameCSV(table.ByTradingPeriod(set.Regions), "date")},
		{"island_week_bytp.csv", frameCSV(table.ByTradingPeriod(set.Islands), "date")},
		{"stats_week.csv", statsCSV(set.Stats)},
		{"price.csv", latestCSV(set.Nodes)},
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeAtomic(filepath.Join(w.dir, job.name), job.write); err != nil {
			return fmt.Errorf("write %s: %w", job.name, err)
		}
	}

	if w.png {
		if len(islandWeek.Rows) < 2 {
			w.logger.Debug().Msg("not enough intervals to chart")
		} else if err := writeAtomic(filepath.Join(w.dir, "island_week.png"), islandChart(islandWeek)); err != nil {
			return fmt.Errorf("write island_week.png: %w", err)
		}
	}

	w.logger.Debug().Str("dir", w.dir).Int("files", len(jobs)).Msg("exports written")
	return nil
}

func frameCSV(f table.Frame, timeHeader string) func(io.Writer) error {
	return func(out io.Writer) error {
		cw := csv.NewWriter(out)
		header := append([]string{timeHeader, "TP"}, f.Labels...)
		if err := cw.Write(header); err != nil {
			return err
		}
		layout := timeLayout
		if timeHeader == "date" {
			layout = "2006-01-02"
		}
		for _, row := range f.Rows {
			rec := make([]string, 0, len(row.Values)+2)
			rec = append(rec, row.Time.Format(layout), strconv.Itoa(row.TradingPeriod))
			for _, v := range row.Values {
				rec = append(rec, formatFloat(v))
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

func statsCSV(t *table.Table[market.Stats]) func(io.Writer) error {
	return func(out io.Writer) error {
		cw := csv.NewWriter(out)
		header := []string{"timestamp", "TP", "count", "dropped", "max_node", "max", "min_node", "min", "mean", "std", "skew", "kurt"}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, col := range t.Columns {
			st := col.Value
			rec := []string{
				col.Key.Time.Format(timeLayout),
				strconv.Itoa(col.Key.TradingPeriod),
				strconv.Itoa(st.Count),
				strconv.Itoa(st.Dropped),
				st.MaxNode, formatFloat(st.Max),
				st.MinNode, formatFloat(st.Min),
				formatFloat(st.Mean), formatFloat(st.Std),
				formatFloat(st.Skew), formatFloat(st.Kurt),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

func latestCSV(t *table.Table[table.Series]) func(io.Writer) error {
	return func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write([]string{"node", "price"}); err != nil {
			return err
		}
		if latest, ok := t.Latest(); ok {
			for _, p := range latest.Value {
				if err := cw.Write([]string{p.Label, formatFloat(p.Value)}); err != nil {
					return err
				}
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic renders into a temporary file next to path and renames it into
// place, so readers never see a partial file.
func writeAtomic(path string, render func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := render(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func rowTimes(f table.Frame) []time.Time {
	out := make([]time.Time, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row.Time
	}
	return out
}
