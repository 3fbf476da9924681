package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"witswatch/internal/config"
	"witswatch/internal/market"
	"witswatch/internal/service"
	"witswatch/internal/table"
)

func testApp(t *testing.T) *App {
	t.Helper()
	return NewApp(&config.Config{
		Market:    config.MarketConfig{Location: "UTC", PriceLimit: 400000, TimeLag: 15 * time.Minute},
		Storage:   config.StorageConfig{Driver: "file", Dir: t.TempDir()},
		Retention: config.RetentionConfig{Main: config.Window{Days: 7}, Stats: config.Window{Hours: 24}},
		Export:    config.ExportConfig{MaxDataPoints: 100},
		Alerting:  config.AlertingConfig{Source: config.SourceInterval, MaxChars: 160},
	}, zerolog.Nop())
}

func sampleTables() *service.Tables {
	tables := &service.Tables{
		Nodes:   table.New[table.Series](service.NodeTable),
		Regions: table.New[table.Series](service.RegionTable),
		Islands: table.New[table.Series](service.IslandTable),
		Reserve: table.New[market.ReserveSummary](service.ReserveTable),
		Stats:   table.New[market.Stats](service.StatsTable),
		Backlog: table.New[service.BacklogEntry](service.BacklogTable),
	}
	key := table.NewKey(time.Date(2026, 10, 18, 12, 20, 0, 0, time.UTC), 25)
	nodes := table.Series{{Label: "HAY2201", Value: 1200}, {Label: "BEN2201", Value: 250}}
	tables.Nodes.Append(key, nodes)
	tables.Islands.Append(key, table.Series{{Label: "NI", Value: 1200}, {Label: "SI", Value: 250}})
	tables.Stats.Append(key, market.DescribeSeries(nodes))
	tables.Backlog.Append(table.NewKey(key.Time.Add(5*time.Minute), 0), service.BacklogEntry{
		Missing: []market.Kind{market.KindPrice}, Attempts: 2,
	})
	return tables
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, sampleTables(), ShowOptions{Limit: 5}))
	out := buf.String()
	assert.Contains(t, out, "2026-10-18 12:20")
	assert.Contains(t, out, "1200.00")
	assert.Contains(t, out, "HAY2201")
}

func TestRenderIslandsAndBacklog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, sampleTables(), ShowOptions{Table: "islands", Limit: 5}))
	assert.True(t, strings.HasPrefix(buf.String(), "Interval"))
	assert.Contains(t, buf.String(), "250.00")

	buf.Reset()
	require.NoError(t, render(&buf, sampleTables(), ShowOptions{Table: "backlog"}))
	assert.Contains(t, buf.String(), "price")

	require.Error(t, render(&buf, sampleTables(), ShowOptions{Table: "bogus"}))
}

func TestExportFromFileStore(t *testing.T) {
	a := testApp(t)
	store, closeStore, err := a.openStore(context.Background())
	require.NoError(t, err)
	defer closeStore()
	require.NoError(t, sampleTables().Save(context.Background(), store))

	dir := t.TempDir()
	require.NoError(t, a.Export(context.Background(), ExportOptions{Dir: dir}))
}

func TestExportNeedsDir(t *testing.T) {
	require.Error(t, testApp(t).Export(context.Background(), ExportOptions{}))
}

func TestBackfillRejectsOldRange(t *testing.T) {
	a := testApp(t)
	from := time.Now().Add(-30 * 24 * time.Hour)
	err := a.Backfill(context.Background(), BackfillOptions{From: from, To: from.Add(time.Hour), DryRun: true})
	require.Error(t, err)
}

func TestAlignForward(t *testing.T) {
	ts := time.Date(2026, 10, 18, 12, 21, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 25, 0, 0, time.UTC), alignForward(ts, 5*time.Minute))
	assert.Equal(t, ts.Add(-time.Minute), alignForward(ts.Add(-time.Minute), 5*time.Minute))
}

func TestSimulateRequiresAlerting(t *testing.T) {
	err := testApp(t).SimulateAlert(context.Background(), SimulateOptions{Node: "HAY2201", Max: "1200", North: "1", South: "1"})
	require.Error(t, err)
}

func TestNotifierFromChannels(t *testing.T) {
	a := testApp(t)
	assert.Nil(t, a.newNotifier())

	a.Config.Alerting.Channels = []string{"telegram"}
	assert.NotNil(t, a.newNotifier())
	assert.Nil(t, a.recipients())

	a.Config.Alerting.Channels = []string{"smtp", "telegram"}
	a.Config.Alerting.SMTP.Phonebook = "phonebook.csv"
	assert.NotNil(t, a.newNotifier())
	assert.NotNil(t, a.recipients())
}
