package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"witswatch/internal/alerting"
	"witswatch/internal/market"
	"witswatch/internal/storage"
	"witswatch/internal/table"
)

// Alert runs one alert check against the stored tables.
func (a *App) Alert(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	s := a.newSession(store, false)
	rep, err := s.svc.RunAlert(ctx)
	if err != nil {
		return err
	}
	if rep.Summary != "" {
		fmt.Fprintln(os.Stdout, rep.Summary)
	}
	return nil
}

// SimulateAlert pushes a synthetic snapshot through the configured alert
// channels.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	if a.newNotifier() == nil {
		return errors.New("no alert channel configured")
	}

	values := make([]float64, 3)
	for i, raw := range []string{opts.Max, opts.North, opts.South} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", raw, err)
		}
		values[i] = d.InexactFloat64()
	}

	snap := alerting.Snapshot{
		Key: table.NewKey(nowIn(a.Config.Location()), opts.Period),
		Stats: market.DescribeSeries(table.Series{
			{Label: opts.Node, Value: values[0]},
		}),
		Islands: table.Series{
			{Label: market.NorthIsland, Value: values[1]},
			{Label: market.SouthIsland, Value: values[2]},
		},
	}

	s := a.newSession(storage.NewMemoryStore(), false)
	rep := s.svc.Dispatch(ctx, snap)
	switch {
	case !rep.Decision.Fire:
		a.Logger.Info().Msg("simulated prices do not meet any trigger")
	case rep.SendErr != nil:
		return rep.SendErr
	}
	return nil
}
