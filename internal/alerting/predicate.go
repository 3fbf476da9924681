package alerting

import (
	"math"

	"witswatch/internal/market"
	"witswatch/internal/table"
)

// Snapshot is the latest interval as seen by the alert job.
type Snapshot struct {
	Key     table.Key
	Stats   market.Stats
	Islands table.Series
	Regions table.Series
}

// Thresholds trigger an alert when met or exceeded.
type Thresholds struct {
	Node   float64
	Island float64
}

// Decision is the outcome of evaluating a Snapshot.
type Decision struct {
	// Complete is false when the predicate cannot be settled: the maximum is
	// undefined, or an island mean is missing and no defined term fired.
	// No alert may be sent then.
	Complete        bool
	Fire            bool
	NodeTriggered   bool
	IslandTriggered []string
}

// Evaluate applies the trigger predicate: the maximum node price reaching
// the node threshold, or either island mean reaching the island threshold.
// A missing island mean only blocks the decision when nothing else fired.
func Evaluate(s Snapshot, th Thresholds) Decision {
	if math.IsNaN(s.Stats.Max) || s.Stats.MaxNode == "" {
		return Decision{}
	}

	d := Decision{NodeTriggered: s.Stats.Max >= th.Node}
	missing := false
	for _, island := range []string{market.NorthIsland, market.SouthIsland} {
		v, ok := s.Islands.Get(island)
		switch {
		case !ok:
			missing = true
		case v >= th.Island:
			d.IslandTriggered = append(d.IslandTriggered, island)
		}
	}
	d.Fire = d.NodeTriggered || len(d.IslandTriggered) > 0
	d.Complete = d.Fire || !missing
	return d
}
