package market

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"witswatch/internal/table"
)

var nz = time.FixedZone("NZDT", 13*3600)

func TestCandidatesSixPerKindWithInfeasibleOffset(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 37, 41, 0, nz)

	price := Candidates(now, 15*time.Minute, KindPrice)
	inf := Candidates(now, 15*time.Minute, KindInfeasible)
	rsv := Candidates(now, 15*time.Minute, KindReserve)

	require.Len(t, price.Names, 6)
	require.Len(t, inf.Names, 6)
	require.Len(t, rsv.Names, 6)

	assert.Equal(t, time.Date(2026, 10, 18, 12, 20, 0, 0, nz), price.Target)
	assert.Equal(t, price.Target.Add(-time.Minute), inf.Target)
	assert.Equal(t, price.Target, rsv.Target)

	assert.Equal(t, "5minprices_202610181220", price.Stem)
	assert.Equal(t, "5minprices_20261018122030.csv.gz", price.Names[0])
	assert.Equal(t, "5minprices_20261018122035.csv.gz", price.Names[5])
	assert.Equal(t, "/5minprices/", price.Dir)

	assert.Equal(t, "inf_rtd20261018121900.csv.gz", inf.Names[0])
	assert.Equal(t, "/public/", inf.Dir)
	assert.True(t, inf.Compressed)
}

func TestTargetAlwaysOnBoundary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, nz)
	for i := 0; i < 24*60; i += 7 {
		now := start.Add(time.Duration(i)*time.Minute + 13*time.Second)
		target := Target(now, 15*time.Minute)
		assert.Zero(t, target.Minute()%5, "now=%s", now)
		assert.Zero(t, target.Second())
		assert.False(t, target.After(now.Add(-15*time.Minute)))
		assert.True(t, now.Add(-15*time.Minute).Sub(target) < IntervalLength)
	}
}

const pricePayload = `NodeA,18/10/2026,25,12:20,50,NI,AK,F,2026-10-18 12:20:31
NodeB,18/10/2026,25,12:20,9999999,NI,AK,F,2026-10-18 12:20:31
NodeC,18/10/2026,25,12:20,-12.5,SI,CH,F,2026-10-18 12:20:31
`

func TestParsePrices(t *testing.T) {
	file, err := ParsePrices([]byte(pricePayload), nz)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 10, 18, 12, 20, 0, 0, nz), file.Key.Time)
	assert.Equal(t, 25, file.Key.TradingPeriod)
	require.Len(t, file.Records, 3)
	assert.Equal(t, "NodeC", file.Records[2].Node)
	assert.Equal(t, "SI", file.Records[2].Island)
	assert.Equal(t, "CH", file.Records[2].Region)
	assert.True(t, file.Records[2].Price.Equal(decimal.RequireFromString("-12.5")))
}

func TestParsePricesEmpty(t *testing.T) {
	file, err := ParsePrices(nil, nz)
	require.NoError(t, err)
	assert.Empty(t, file.Records)
	assert.True(t, file.Key.IsZero())
}

func TestParsePricesMalformed(t *testing.T) {
	cases := map[string]string{
		"column count": "NodeA,18/10/2026,25,12:20,50,NI,AK\n",
		"bad date":     "NodeA,2026-10-18,25,12:20,50,NI,AK,F,x\n",
		"no such day":  "NodeA,31/02/2026,25,12:20,50,NI,AK,F,x\n",
		"bad price":    "NodeA,18/10/2026,25,12:20,abc,NI,AK,F,x\n",
		"bad tp":       "NodeA,18/10/2026,TP,12:20,50,NI,AK,F,x\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePrices([]byte(payload), nz)
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, KindPrice, derr.Kind)
		})
	}
}

func TestParseDateTimeRejectsRolledDates(t *testing.T) {
	for _, date := range []string{"31/02/2026", "29/02/2026", "31/04/2026"} {
		_, err := parseDateTime(date, "12:20", nz)
		assert.Error(t, err, date)
	}

	ts, err := parseDateTime("29/02/2028", "00:05", nz)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2028, 2, 29, 0, 5, 0, 0, nz), ts)
}

func TestParseInfeasible(t *testing.T) {
	set, err := ParseInfeasible([]byte("NodeA,18/10/2026,25,I,0,x,N\nNodeZ,18/10/2026,25,I,0,x,N\n"))
	require.NoError(t, err)
	assert.True(t, set.Contains("NodeA"))
	assert.True(t, set.Contains("NodeZ"))
	assert.False(t, set.Contains("NodeB"))

	empty, err := ParseInfeasible(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseInfeasible([]byte("NodeA,18/10/2026\n"))
	assert.Error(t, err)
}

func TestParseReserve(t *testing.T) {
	fields := make([]string, 0, 21)
	for i := 0; i < 19; i++ {
		fields = append(fields, "1.5")
	}
	fields = append(fields, "25", "18/10/2026 12:20")

	rs, err := ParseReserve([]byte(strings.Join(fields, ",")+"\n"), nz)
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Equal(t, 1.5, rs.NIFIRPrice)
	assert.Equal(t, 1.5, rs.HVDCSouthMW)
	assert.Equal(t, 25, rs.Key().TradingPeriod)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 20, 0, 0, nz), rs.Key().Time)

	none, err := ParseReserve([]byte{}, nz)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func rec(node, island, region string, price float64) NodePrice {
	return NodePrice{Node: node, Island: island, Region: region, Price: decimal.NewFromFloat(price)}
}

func TestAggregateSanityLimit(t *testing.T) {
	file, err := ParsePrices([]byte(pricePayload), nz)
	require.NoError(t, err)
	file.Records = file.Records[:2]

	iv := Aggregate(file, nil, DefaultPriceLimit)

	assert.Equal(t, []string{"NodeA"}, iv.Nodes.Labels())
	ak, ok := iv.Regions.Get("AK")
	require.True(t, ok)
	assert.Equal(t, 50.0, ak)
	assert.Equal(t, 1, iv.Stats.Dropped)
	assert.Equal(t, 1, iv.Stats.Count)
}

func TestAggregateInfeasibleExcludedBeforeStats(t *testing.T) {
	file := PriceFile{Records: []NodePrice{
		rec("NodeA", "NI", "AK", 900),
		rec("NodeB", "NI", "AK", 40),
	}}
	iv := Aggregate(file, InfeasibleSet{"NodeA": {}}, DefaultPriceLimit)

	assert.Equal(t, "NodeB", iv.Stats.MaxNode)
	assert.Equal(t, "NodeB", iv.Stats.MinNode)
	assert.Equal(t, 40.0, iv.Stats.Max)
	assert.Zero(t, iv.Stats.Dropped)
}

func TestDescribeMatchesFormulas(t *testing.T) {
	values := []float64{10, 20, 20, 30, 70}
	recs := make([]NodePrice, len(values))
	for i, v := range values {
		recs[i] = rec(string(rune('A'+i)), "NI", "AK", v)
	}

	st := Describe(recs, values)

	n := float64(len(values))
	mean := (10 + 20 + 20 + 30 + 70) / n
	var m2, m3, m4 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d / n
		m3 += d * d * d / n
		m4 += d * d * d * d / n
	}
	assert.InDelta(t, mean, st.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(m2), st.Std, 1e-9)
	assert.InDelta(t, m3/math.Pow(m2, 1.5), st.Skew, 1e-9)
	assert.InDelta(t, m4/(m2*m2)-3, st.Kurt, 1e-9)
	assert.Equal(t, "E", st.MaxNode)
	assert.Equal(t, "A", st.MinNode)
}

func TestDescribeEmptyIsUndefined(t *testing.T) {
	st := Describe(nil, nil)
	for _, v := range []float64{st.Max, st.Min, st.Mean, st.Std, st.Skew, st.Kurt} {
		assert.True(t, math.IsNaN(v))
	}

	iv := Aggregate(PriceFile{Records: []NodePrice{rec("A", "NI", "AK", 500000)}}, nil, DefaultPriceLimit)
	assert.True(t, iv.Empty())
}

func TestDescribeZeroVariance(t *testing.T) {
	st := Describe([]NodePrice{rec("A", "NI", "AK", 5), rec("B", "NI", "AK", 5)}, []float64{5, 5})
	assert.Equal(t, 0.0, st.Std)
	assert.True(t, math.IsNaN(st.Skew))
	assert.True(t, math.IsNaN(st.Kurt))
}

func TestStatsJSONKeepsNaN(t *testing.T) {
	in := Describe(nil, nil)
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Stats
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, math.IsNaN(out.Mean))
	assert.Zero(t, out.Count)
}

func TestDescribeSeriesSkipsNaN(t *testing.T) {
	st := DescribeSeries(table.Series{
		{Label: "AK", Value: 90},
		{Label: "HM", Value: math.NaN()},
		{Label: "WN", Value: 30},
	})
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, "AK", st.MaxNode)
	assert.Equal(t, "WN", st.MinNode)
	assert.InDelta(t, 60, st.Mean, 1e-9)
}
