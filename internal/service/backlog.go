package service

import (
	"context"
	"time"

	"witswatch/internal/market"
	"witswatch/internal/table"
)

// BacklogEntry is an interval whose price or infeasible file could not be
// retrieved. It is keyed by the interval's price target time.
type BacklogEntry struct {
	Missing  []market.Kind `json:"missing"`
	Attempts int           `json:"attempts"`
}

// recordUnresolved adds target to the backlog when its price or infeasible
// file was missed or failed in transit. Decode failures are not retried.
func recordUnresolved(backlog *table.Table[BacklogEntry], target time.Time, outcomes map[market.Kind]Outcome) {
	var missing []market.Kind
	for _, kind := range []market.Kind{market.KindPrice, market.KindInfeasible} {
		switch outcomes[kind] {
		case OutcomeMissed, OutcomeFetchError:
			missing = append(missing, kind)
		}
	}
	if len(missing) == 0 {
		return
	}
	backlog.Put(table.NewKey(target, 0), BacklogEntry{Missing: missing})
}

// retry re-fetches backlog intervals oldest first, at most backlogMax of them,
// skipping the key just recorded. A recovered price file is folded,
// replacing any column built without its infeasible list. An entry is
// resolved once both files have been read.
func (s *Service) retry(ctx context.Context, tables *Tables, skip table.Key) (retried, resolved int) {
	keys := make([]table.Key, 0, tables.Backlog.Len())
	for _, col := range tables.Backlog.Columns {
		if !skip.IsZero() && col.Key.Equal(skip) {
			continue
		}
		keys = append(keys, col.Key)
	}

	for _, key := range keys {
		if s.backlogMax > 0 && retried >= s.backlogMax {
			break
		}
		if ctx.Err() != nil {
			break
		}
		retried++

		entry, _ := tables.Backlog.Get(key)
		got := s.fetchInterval(ctx, key.Time, []market.Kind{market.KindPrice, market.KindInfeasible})

		if got.price != nil {
			iv := market.Aggregate(*got.price, got.infeasible, s.limit)
			if tables.Fold(iv, true) {
				s.metrics.Appended(NodeTable)
			}
		}

		priceOK := got.outcomes[market.KindPrice] == OutcomeOK
		infeasibleOK := got.outcomes[market.KindInfeasible] == OutcomeOK
		decodeFailed := got.outcomes[market.KindPrice] == OutcomeDecodeError
		switch {
		case priceOK && infeasibleOK, decodeFailed:
			tables.Backlog.Remove(key)
			resolved++
			s.logger.Info().Time("target", key.Time).Msg("backlog interval resolved")
		default:
			entry.Attempts++
			entry.Missing = entry.Missing[:0]
			if !priceOK {
				entry.Missing = append(entry.Missing, market.KindPrice)
			}
			if !infeasibleOK {
				entry.Missing = append(entry.Missing, market.KindInfeasible)
			}
			tables.Backlog.Put(key, entry)
		}
	}
	return retried, resolved
}

// pruneBacklog drops entries older than cutoff; their intervals would be
// cropped on arrival.
func pruneBacklog(backlog *table.Table[BacklogEntry], cutoff time.Time) int {
	n := 0
	for len(backlog.Columns) > 0 && backlog.Columns[0].Key.Time.Before(cutoff) {
		backlog.Remove(backlog.Columns[0].Key)
		n++
	}
	return n
}
