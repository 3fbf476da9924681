package market

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"witswatch/internal/table"
)

// Kind names one of the three files published per interval.
type Kind string

const (
	KindPrice      Kind = "price"
	KindInfeasible Kind = "infeasible"
	KindReserve    Kind = "reserve"
)

// Kinds lists every kind in fetch order.
var Kinds = []Kind{KindPrice, KindInfeasible, KindReserve}

// Regions is the canonical row order of region-indexed tables.
var Regions = []string{"AK", "HM", "BP", "NL", "NR", "PN", "WN", "CH", "WC", "IN"}

// Islands codes.
const (
	NorthIsland = "NI"
	SouthIsland = "SI"
)

// NodePrice is one grid exit point's price for an interval.
type NodePrice struct {
	Node   string
	Island string
	Region string
	Price  decimal.Decimal
}

// PriceFile is a parsed price payload.
type PriceFile struct {
	Key     table.Key
	Records []NodePrice
}

// InfeasibleSet holds nodes excluded from an interval. A nil set is empty.
type InfeasibleSet map[string]struct{}

// Contains reports whether node is infeasible.
func (s InfeasibleSet) Contains(node string) bool {
	_, ok := s[node]
	return ok
}

// ReserveSummary is the system reserve and constraint state for one interval.
type ReserveSummary struct {
	RampConstrained   float64   `json:"ramp_constrained"`
	BranchConstrained float64   `json:"branch_constrained"`
	GroupConstrained  float64   `json:"group_constrained"`
	NIFIRMW           float64   `json:"ni_fir_mw"`
	NIFIRPrice        float64   `json:"ni_fir_price"`
	NISIRMW           float64   `json:"ni_sir_mw"`
	NISIRPrice        float64   `json:"ni_sir_price"`
	SIFIRMW           float64   `json:"si_fir_mw"`
	SIFIRPrice        float64   `json:"si_fir_price"`
	SISIRMW           float64   `json:"si_sir_mw"`
	SISIRPrice        float64   `json:"si_sir_price"`
	NIFIRDeficit      float64   `json:"ni_fir_deficit"`
	NISIRDeficit      float64   `json:"ni_sir_deficit"`
	SIFIRDeficit      float64   `json:"si_fir_deficit"`
	SISIRDeficit      float64   `json:"si_sir_deficit"`
	NIEnergyDeficit   float64   `json:"ni_energy_deficit"`
	SIEnergyDeficit   float64   `json:"si_energy_deficit"`
	HVDCNorthMW       float64   `json:"hvdc_north_mw"`
	HVDCSouthMW       float64   `json:"hvdc_south_mw"`
	TradingPeriod     int       `json:"trading_period"`
	Time              time.Time `json:"datetime"`
}

// Key returns the interval the summary belongs to.
func (r ReserveSummary) Key() table.Key {
	return table.NewKey(r.Time, r.TradingPeriod)
}

// Stats summarises the filtered node prices of one interval. Every float is
// NaN when Count is zero; Skew and Kurt are also NaN for zero variance.
// Kurt is excess kurtosis.
type Stats struct {
	Count   int
	Dropped int
	MaxNode string
	Max     float64
	MinNode string
	Min     float64
	Mean    float64
	Std     float64
	Skew    float64
	Kurt    float64
}

type statsJSON struct {
	Count   int      `json:"count"`
	Dropped int      `json:"dropped"`
	MaxNode string   `json:"max_node"`
	Max     *float64 `json:"max"`
	MinNode string   `json:"min_node"`
	Min     *float64 `json:"min"`
	Mean    *float64 `json:"mean"`
	Std     *float64 `json:"std"`
	Skew    *float64 `json:"skew"`
	Kurt    *float64 `json:"kurt"`
}

// MarshalJSON encodes undefined statistics as null.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Count:   s.Count,
		Dropped: s.Dropped,
		MaxNode: s.MaxNode,
		Max:     table.NullFloat(s.Max),
		MinNode: s.MinNode,
		Min:     table.NullFloat(s.Min),
		Mean:    table.NullFloat(s.Mean),
		Std:     table.NullFloat(s.Std),
		Skew:    table.NullFloat(s.Skew),
		Kurt:    table.NullFloat(s.Kurt),
	})
}

// UnmarshalJSON decodes null statistics back to NaN.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw statsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Stats{
		Count:   raw.Count,
		Dropped: raw.Dropped,
		MaxNode: raw.MaxNode,
		Max:     table.FromNull(raw.Max),
		MinNode: raw.MinNode,
		Min:     table.FromNull(raw.Min),
		Mean:    table.FromNull(raw.Mean),
		Std:     table.FromNull(raw.Std),
		Skew:    table.FromNull(raw.Skew),
		Kurt:    table.FromNull(raw.Kurt),
	}
	return nil
}

// Interval is the aggregated result of one price file.
type Interval struct {
	Key     table.Key
	Nodes   table.Series
	Regions table.Series
	Islands table.Series
	Stats   Stats
}

// Empty reports whether no record survived filtering.
func (i Interval) Empty() bool {
	return i.Stats.Count == 0
}
