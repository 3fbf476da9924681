package service

import (
	"context"
	"time"

	"witswatch/internal/alerting"
	"witswatch/internal/config"
	"witswatch/internal/market"
	"witswatch/internal/table"
)

// AlertReport describes one alert check.
type AlertReport struct {
	Snapshot alerting.Snapshot
	Decision alerting.Decision
	Summary  string
	Text     string
	Sent     bool
	SendErr  error
}

// RunAlert evaluates the latest data and sends an alert when a trigger is
// met. Delivery failures are logged and reported, not returned.
func (s *Service) RunAlert(ctx context.Context) (AlertReport, error) {
	var rep AlertReport

	tables, err := LoadTables(ctx, s.store)
	if err != nil {
		s.finish(ctx, "alert", "persistence_error")
		return rep, err
	}

	snap, ok := s.snapshot(tables)
	if !ok {
		s.logger.Warn().Str("source", s.source).Msg("no data to evaluate")
		s.metrics.Alert("no_data")
		s.finish(ctx, "alert", "ok")
		return rep, nil
	}
	rep.Snapshot = snap
	rep.Summary = alerting.FormatSummary(snap)
	s.logger.Info().Str("summary", rep.Summary).Msg("price summary")

	return s.deliver(ctx, rep), nil
}

// Dispatch evaluates and sends for an explicit snapshot.
func (s *Service) Dispatch(ctx context.Context, snap alerting.Snapshot) AlertReport {
	rep := AlertReport{Snapshot: snap, Summary: alerting.FormatSummary(snap)}
	s.logger.Info().Str("summary", rep.Summary).Msg("price summary")
	return s.deliver(ctx, rep)
}

func (s *Service) deliver(ctx context.Context, rep AlertReport) AlertReport {
	snap := rep.Snapshot
	rep.Decision = alerting.Evaluate(snap, s.thresholds)
	if !rep.Decision.Complete {
		s.logger.Warn().Str("key", snap.Key.String()).Msg("snapshot incomplete, no alert")
		s.metrics.Alert("incomplete")
		s.finish(ctx, "alert", "ok")
		return rep
	}
	if !rep.Decision.Fire {
		s.metrics.Alert("quiet")
		s.finish(ctx, "alert", "ok")
		return rep
	}

	if rep.Decision.NodeTriggered {
		s.logger.Info().Float64("trigger", s.thresholds.Node).Str("node", snap.Stats.MaxNode).Msg("node price at or above trigger")
	}
	if len(rep.Decision.IslandTriggered) > 0 {
		s.logger.Info().Float64("trigger", s.thresholds.Island).Strs("islands", rep.Decision.IslandTriggered).Msg("island price at or above trigger")
	}

	rep.Text = alerting.FormatAlert(snap, s.maxChars)
	if !s.alertsOn || s.notifier == nil {
		s.logger.Info().Str("alert", rep.Text).Msg("alerting disabled, not sent")
		s.metrics.Alert("suppressed")
		s.finish(ctx, "alert", "ok")
		return rep
	}

	var recipients []string
	if s.recipients != nil {
		list, err := s.recipients(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("load recipients failed")
			rep.SendErr = err
			s.metrics.Alert("failed")
			s.finish(ctx, "alert", "send_error")
			return rep
		}
		recipients = list
	}

	msg := alerting.Message{Recipients: recipients, Subject: alerting.Subject(snap), Body: rep.Text}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Msg("alert delivery failed")
		rep.SendErr = err
		s.metrics.Alert("failed")
		s.finish(ctx, "alert", "send_error")
		return rep
	}

	rep.Sent = true
	s.metrics.Alert("sent")
	s.finish(ctx, "alert", "ok")
	return rep
}

func (s *Service) snapshot(tables *Tables) (alerting.Snapshot, bool) {
	if s.source == config.SourceTradingPeriod {
		return periodSnapshot(tables)
	}
	return intervalSnapshot(tables)
}

// intervalSnapshot reads the latest column of each table.
func intervalSnapshot(tables *Tables) (alerting.Snapshot, bool) {
	latest, ok := tables.Stats.Latest()
	if !ok {
		return alerting.Snapshot{}, false
	}
	snap := alerting.Snapshot{Key: latest.Key, Stats: latest.Value}
	snap.Islands, _ = tables.Islands.Get(latest.Key)
	snap.Regions, _ = tables.Regions.Get(latest.Key)
	return snap, true
}

// periodSnapshot averages the intervals of the latest completed trading
// period, the one before the period in progress.
func periodSnapshot(tables *Tables) (alerting.Snapshot, bool) {
	nodes := table.ByTradingPeriod(tables.Nodes)
	if len(nodes.Rows) < 2 {
		return alerting.Snapshot{}, false
	}
	i := len(nodes.Rows) - 2
	row := nodes.Rows[i]

	start := row.Time.Add(time.Duration(row.TradingPeriod-1) * 30 * time.Minute)
	snap := alerting.Snapshot{
		Key:   table.NewKey(start, row.TradingPeriod),
		Stats: market.DescribeSeries(nodes.Series(i)),
	}
	snap.Islands = periodRow(table.ByTradingPeriod(tables.Islands), row)
	snap.Regions = periodRow(table.ByTradingPeriod(tables.Regions), row)
	return snap, true
}

func periodRow(f table.Frame, want table.FrameRow) table.Series {
	for i, row := range f.Rows {
		if row.Time.Equal(want.Time) && row.TradingPeriod == want.TradingPeriod {
			return f.Series(i)
		}
	}
	return nil
}
