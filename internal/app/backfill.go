package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"witswatch/internal/market"
	"witswatch/internal/storage"
)

// Backfill replays fetch cycles for every interval in [From, To). The range
// must lie within the retention window; older columns would be cropped on
// arrival.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	interval := market.IntervalLength
	now := time.Now()
	oldest := now.Add(-a.Config.Retention.Main.Duration())

	start := alignForward(opts.From, interval)
	end := opts.To
	if end.After(now) {
		end = now
	}
	if !start.Before(end) {
		return errors.New("backfill range is empty, check --from/--to")
	}
	if start.Before(oldest) {
		return fmt.Errorf("--from is older than the retention window (%s)", oldest.Format(time.RFC3339))
	}

	var (
		store      storage.BlobStore
		closeStore = func() {}
		err        error
	)
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
		store = storage.NewMemoryStore()
	} else {
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
	}
	defer closeStore()

	s := a.newSession(store, true)
	defer s.close()

	processed, appended, failed := 0, 0, 0
	for bucket := start; bucket.Before(end); bucket = bucket.Add(interval) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rep, err := s.svc.RunFetch(ctx, bucket.Add(a.Config.Market.TimeLag))
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Time("bucket", bucket).Msg("backfill interval failed")
			continue
		}
		processed++
		if rep.Appended {
			appended++
		}
	}

	a.Logger.Info().Int("processed", processed).Int("appended", appended).Int("failed", failed).Msg("backfill complete")
	if failed > 0 {
		return errors.New("some intervals failed to backfill, check the log")
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}

func nowIn(loc *time.Location) time.Time {
	return time.Now().In(loc)
}
