package app

import (
	"context"
	"time"
)

// Fetch runs one fetch cycle, for the interval due now or at opts.At.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	now := time.Now()
	if opts.At != nil {
		now = *opts.At
	}

	s := a.newSession(store, true)
	defer s.close()

	rep, err := s.svc.RunFetch(ctx, now)
	if err != nil {
		return err
	}
	for kind, outcome := range rep.Outcomes {
		a.Logger.Debug().Str("kind", string(kind)).Str("outcome", string(outcome)).Msg("kind outcome")
	}
	return nil
}

// Backlog retries unresolved intervals on demand.
func (a *App) Backlog(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	s := a.newSession(store, true)
	defer s.close()

	_, err = s.svc.RunBacklog(ctx, time.Now())
	return err
}
