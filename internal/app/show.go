package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"witswatch/internal/service"
	"witswatch/internal/table"
)

// Show prints the most recent columns of one rolling table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tables, err := service.LoadTables(ctx, store)
	if err != nil {
		return err
	}
	return render(os.Stdout, tables, opts)
}

func render(out io.Writer, tables *service.Tables, opts ShowOptions) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	switch opts.Table {
	case "", "stats":
		cols := tables.Stats.Tail(opts.Limit)
		if len(cols) == 0 {
			fmt.Fprintln(writer, "no intervals recorded")
			return nil
		}
		fmt.Fprintln(writer, "Interval\tTP\tNodes\tDropped\tMax\tMax node\tMin\tMin node\tMean\tStd")
		for _, col := range cols {
			st := col.Value
			fmt.Fprintf(writer, "%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				col.Key.Time.Format("2006-01-02 15:04"), col.Key.TradingPeriod,
				st.Count, st.Dropped,
				price(st.Max), st.MaxNode, price(st.Min), st.MinNode,
				price(st.Mean), price(st.Std))
		}
	case "islands":
		return renderSeries(writer, tables.Islands, opts.Limit)
	case "regions":
		return renderSeries(writer, tables.Regions, opts.Limit)
	case "reserve":
		cols := tables.Reserve.Tail(opts.Limit)
		fmt.Fprintln(writer, "Interval\tTP\tNI FIR $\tNI SIR $\tSI FIR $\tSI SIR $\tHVDC N MW\tHVDC S MW")
		for _, col := range cols {
			r := col.Value
			fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\t%.0f\t%.0f\n",
				col.Key.Time.Format("2006-01-02 15:04"), col.Key.TradingPeriod,
				price(r.NIFIRPrice), price(r.NISIRPrice), price(r.SIFIRPrice), price(r.SISIRPrice),
				r.HVDCNorthMW, r.HVDCSouthMW)
		}
	case "backlog":
		fmt.Fprintln(writer, "Target\tMissing\tAttempts")
		for _, col := range tables.Backlog.Tail(opts.Limit) {
			missing := make([]string, len(col.Value.Missing))
			for i, k := range col.Value.Missing {
				missing[i] = string(k)
			}
			fmt.Fprintf(writer, "%s\t%s\t%d\n", col.Key.Time.Format("2006-01-02 15:04"), strings.Join(missing, ","), col.Value.Attempts)
		}
	default:
		return fmt.Errorf("unknown table %q (stats, islands, regions, reserve, backlog)", opts.Table)
	}
	return nil
}

func renderSeries(w io.Writer, t *table.Table[table.Series], limit int) error {
	cols := t.Tail(limit)
	if len(cols) == 0 {
		fmt.Fprintln(w, "no intervals recorded")
		return nil
	}
	labels := table.Labels(t)
	fmt.Fprintf(w, "Interval\tTP\t%s\n", strings.Join(labels, "\t"))
	for _, col := range cols {
		cells := make([]string, len(labels))
		for i, label := range labels {
			v, _ := col.Value.Get(label)
			cells[i] = price(v)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", col.Key.Time.Format("2006-01-02 15:04"), col.Key.TradingPeriod, strings.Join(cells, "\t"))
	}
	return nil
}

func price(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
