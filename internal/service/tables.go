package service

import (
	"context"
	"errors"
	"fmt"

	"witswatch/internal/export"
	"witswatch/internal/market"
	"witswatch/internal/storage"
	"witswatch/internal/table"
)

// Persisted table names.
const (
	NodeTable    = "node_prices"
	RegionTable  = "region_means"
	IslandTable  = "island_means"
	ReserveTable = "reserve_summary"
	StatsTable   = "interval_stats"
	BacklogTable = "unresolved_files"
)

// ErrPersistence marks a failure to load or save rolling tables. The cycle
// that hits it saves nothing.
var ErrPersistence = errors.New("service: persistence failure")

// Tables is the full rolling dataset.
type Tables struct {
	Nodes   *table.Table[table.Series]
	Regions *table.Table[table.Series]
	Islands *table.Table[table.Series]
	Reserve *table.Table[market.ReserveSummary]
	Stats   *table.Table[market.Stats]
	Backlog *table.Table[BacklogEntry]
}

// LoadTables reads every table. Absent tables start empty.
func LoadTables(ctx context.Context, store storage.BlobStore) (*Tables, error) {
	var (
		t   Tables
		err error
	)
	if t.Nodes, err = table.Load[table.Series](ctx, store, NodeTable); err != nil {
		return nil, persistence("load", NodeTable, err)
	}
	if t.Regions, err = table.Load[table.Series](ctx, store, RegionTable); err != nil {
		return nil, persistence("load", RegionTable, err)
	}
	if t.Islands, err = table.Load[table.Series](ctx, store, IslandTable); err != nil {
		return nil, persistence("load", IslandTable, err)
	}
	if t.Reserve, err = table.Load[market.ReserveSummary](ctx, store, ReserveTable); err != nil {
		return nil, persistence("load", ReserveTable, err)
	}
	if t.Stats, err = table.Load[market.Stats](ctx, store, StatsTable); err != nil {
		return nil, persistence("load", StatsTable, err)
	}
	if t.Backlog, err = table.Load[BacklogEntry](ctx, store, BacklogTable); err != nil {
		return nil, persistence("load", BacklogTable, err)
	}
	return &t, nil
}

// Save writes every table.
func (t *Tables) Save(ctx context.Context, store storage.BlobStore) error {
	saves := []struct {
		name string
		save func() error
	}{
		{NodeTable, func() error { return table.Save(ctx, store, t.Nodes) }},
		{RegionTable, func() error { return table.Save(ctx, store, t.Regions) }},
		{IslandTable, func() error { return table.Save(ctx, store, t.Islands) }},
		{ReserveTable, func() error { return table.Save(ctx, store, t.Reserve) }},
		{StatsTable, func() error { return table.Save(ctx, store, t.Stats) }},
		{BacklogTable, func() error { return table.Save(ctx, store, t.Backlog) }},
	}
	for _, s := range saves {
		if err := s.save(); err != nil {
			return persistence("save", s.name, err)
		}
	}
	return nil
}

// Fold appends one aggregated interval to the node, region, island and
// statistics tables. With replace set an existing column is overwritten;
// otherwise a repeated key is a no-op. It reports whether anything changed.
func (t *Tables) Fold(iv market.Interval, replace bool) bool {
	if iv.Empty() {
		return false
	}
	regions := iv.Regions.Reindex(market.Regions)
	if replace {
		t.Nodes.Put(iv.Key, iv.Nodes)
		t.Regions.Put(iv.Key, regions)
		t.Islands.Put(iv.Key, iv.Islands)
		t.Stats.Put(iv.Key, iv.Stats)
		return true
	}
	added := t.Nodes.Append(iv.Key, iv.Nodes)
	t.Regions.Append(iv.Key, regions)
	t.Islands.Append(iv.Key, iv.Islands)
	t.Stats.Append(iv.Key, iv.Stats)
	return added
}

// Crop applies the retention windows: main to the interval tables, stats to
// the statistics table. Region rows are brought back into canonical order.
func (t *Tables) Crop(main, stats table.Retention) int {
	removed := t.Nodes.Crop(main)
	removed += t.Regions.Crop(main)
	removed += t.Islands.Crop(main)
	removed += t.Reserve.Crop(main)
	removed += t.Stats.Crop(stats)
	table.Reindex(t.Regions, market.Regions)
	return removed
}

// ExportSet exposes the tables used by derived files.
func (t *Tables) ExportSet() export.Set {
	return export.Set{Nodes: t.Nodes, Regions: t.Regions, Islands: t.Islands, Stats: t.Stats}
}

func persistence(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, name, err)
}
