package export

import (
	"io"

	chart "github.com/wcharczuk/go-chart/v2"

	"witswatch/internal/table"
)

// islandChart plots one line per island mean price.
func islandChart(f table.Frame) func(io.Writer) error {
	return func(out io.Writer) error {
		x := rowTimes(f)
		series := make([]chart.Series, 0, len(f.Labels))
		for _, label := range f.Labels {
			series = append(series, chart.TimeSeries{
				Name:    label,
				XValues: x,
				YValues: f.Column(label),
			})
		}

		priceFormatter := func(v interface{}) string {
			return chart.FloatValueFormatterWithFormat(v, "$%.0f")
		}
		graph := chart.Chart{
			Width:  1280,
			Height: 720,
			XAxis: chart.XAxis{
				ValueFormatter: chart.TimeValueFormatterWithFormat("Mon 15:04"),
			},
			YAxis: chart.YAxis{
				Name:           "Island mean price ($/MWh)",
				ValueFormatter: priceFormatter,
			},
			Series: series,
		}
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}

		return graph.Render(chart.PNG, out)
	}
}
