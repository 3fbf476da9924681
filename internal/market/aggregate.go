package market

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"witswatch/internal/table"
)

// DefaultPriceLimit is the absolute price above which a record is treated
// as bad data.
var DefaultPriceLimit = decimal.NewFromInt(400000)

// Aggregate folds a price file into node, region and island series plus
// interval statistics. Infeasible nodes are dropped first, then records whose
// absolute price exceeds limit.
func Aggregate(file PriceFile, infeasible InfeasibleSet, limit decimal.Decimal) Interval {
	out := Interval{Key: file.Key}

	kept := make([]NodePrice, 0, len(file.Records))
	dropped := 0
	for _, rec := range file.Records {
		if infeasible.Contains(rec.Node) {
			continue
		}
		if rec.Price.Abs().GreaterThan(limit) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}

	prices := make([]float64, len(kept))
	out.Nodes = make(table.Series, len(kept))
	for i, rec := range kept {
		prices[i] = rec.Price.InexactFloat64()
		out.Nodes[i] = table.Point{Label: rec.Node, Value: prices[i]}
	}

	out.Regions = groupMean(kept, prices, func(r NodePrice) string { return r.Region })
	out.Islands = groupMean(kept, prices, func(r NodePrice) string { return r.Island })
	out.Stats = Describe(kept, prices)
	out.Stats.Dropped = dropped
	return out
}

func groupMean(recs []NodePrice, prices []float64, key func(NodePrice) string) table.Series {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, rec := range recs {
		k := key(rec)
		sums[k] += prices[i]
		counts[k]++
	}
	means := make(map[string]float64, len(sums))
	for k, sum := range sums {
		means[k] = sum / float64(counts[k])
	}
	return table.SeriesFromMap(means)
}

// Describe computes the interval statistics over already filtered records.
// Standard deviation is the population form; skew and kurtosis are the third
// and fourth standardised moments, kurtosis in excess form.
func Describe(recs []NodePrice, prices []float64) Stats {
	nan := math.NaN()
	st := Stats{Count: len(prices), Max: nan, Min: nan, Mean: nan, Std: nan, Skew: nan, Kurt: nan}
	if len(prices) == 0 {
		return st
	}

	hi, lo := floats.MaxIdx(prices), floats.MinIdx(prices)
	st.Max, st.MaxNode = prices[hi], recs[hi].Node
	st.Min, st.MinNode = prices[lo], recs[lo].Node

	st.Mean, st.Std = stat.PopMeanStdDev(prices, nil)
	if m2 := stat.Moment(2, prices, nil); m2 > 0 {
		st.Skew = stat.Moment(3, prices, nil) / math.Pow(m2, 1.5)
		st.Kurt = stat.Moment(4, prices, nil)/(m2*m2) - 3
	}
	return st
}

// DescribeSeries computes Stats over a node series, skipping undefined values.
func DescribeSeries(s table.Series) Stats {
	recs := make([]NodePrice, 0, len(s))
	prices := make([]float64, 0, len(s))
	for _, p := range s {
		if math.IsNaN(p.Value) {
			continue
		}
		recs = append(recs, NodePrice{Node: p.Label})
		prices = append(prices, p.Value)
	}
	return Describe(recs, prices)
}
