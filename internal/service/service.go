package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"witswatch/internal/alerting"
	"witswatch/internal/config"
	"witswatch/internal/export"
	"witswatch/internal/fetcher"
	"witswatch/internal/market"
	"witswatch/internal/metrics"
	"witswatch/internal/storage"
	"witswatch/internal/table"
)

// Exporter writes derived files after a cycle.
type Exporter interface {
	Export(ctx context.Context, set export.Set) error
}

// RecipientSource lists alert recipients at send time.
type RecipientSource func(ctx context.Context) ([]string, error)

// Deps are the collaborators of a Service. Only Store is required.
type Deps struct {
	Store      storage.BlobStore
	Fetcher    fetcher.Fetcher
	Notifier   alerting.Notifier
	Recipients RecipientSource
	Exporter   Exporter
	Metrics    *metrics.Recorder
	Pusher     *metrics.Pusher
}

// Service runs the fetch cycle and the alert check against the rolling
// tables.
type Service struct {
	store      storage.BlobStore
	orch       *fetcher.Orchestrator
	notifier   alerting.Notifier
	recipients RecipientSource
	exporter   Exporter
	metrics    *metrics.Recorder
	pusher     *metrics.Pusher
	logger     zerolog.Logger

	loc          *time.Location
	lag          time.Duration
	limit        decimal.Decimal
	retention    table.Retention
	statsWindow  table.Retention
	retryBacklog bool
	backlogMax   int

	alertsOn   bool
	thresholds alerting.Thresholds
	source     string
	maxChars   int

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.Store.(storage.AdvisoryLocker); ok {
		locker = l
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NewRecorder()
	}

	s := &Service{
		store:      deps.Store,
		notifier:   deps.Notifier,
		recipients: deps.Recipients,
		exporter:   deps.Exporter,
		metrics:    rec,
		pusher:     deps.Pusher,
		logger:     logger.With().Str("component", "service").Logger(),

		loc:          cfg.Location(),
		lag:          cfg.Market.TimeLag,
		limit:        decimal.NewFromFloat(cfg.Market.PriceLimit),
		retention:    retention(cfg.Retention.Main),
		statsWindow:  retention(cfg.Retention.Stats),
		retryBacklog: cfg.Fetch.RetryBacklog,
		backlogMax:   cfg.Fetch.BacklogMax,

		alertsOn: cfg.Alerting.Enabled,
		thresholds: alerting.Thresholds{
			Node:   cfg.Alerting.NodeTrigger,
			Island: cfg.Alerting.IslandTrigger,
		},
		source:   cfg.Alerting.Source,
		maxChars: cfg.Alerting.MaxChars,

		locker:  locker,
		lockKey: cfg.Scheduler.AdvisoryLockKey,
	}
	if deps.Fetcher != nil {
		s.orch = fetcher.NewOrchestrator(deps.Fetcher, logger)
	}
	return s
}

func retention(w config.Window) table.Retention {
	return table.Retention{Days: w.Days, Hours: w.Hours}
}

// Outcome summarises what happened to one kind in a cycle.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeMissed      Outcome = "missed"
	OutcomeFetchError  Outcome = "fetch_error"
	OutcomeDecodeError Outcome = "decode_error"
)

// Report describes one fetch cycle.
type Report struct {
	Target   time.Time
	Outcomes map[market.Kind]Outcome
	Interval *market.Interval
	Appended bool
	Retried  int
	Resolved int
	Backlog  int
	Skipped  bool
}

// RunFetch runs one fetch cycle for the interval due at now. Tables are all
// loaded before anything is fetched and saved only after every fold, so a
// persistence failure leaves the previous state intact.
func (s *Service) RunFetch(ctx context.Context, now time.Time) (Report, error) {
	rep := Report{Outcomes: make(map[market.Kind]Outcome)}
	if s.orch == nil {
		return rep, errors.New("fetcher not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return rep, err
	}
	if !proceed {
		s.logger.Info().Msg("skip cycle because advisory lock held elsewhere")
		rep.Skipped = true
		return rep, nil
	}
	if unlock != nil {
		defer unlock()
	}

	tables, err := LoadTables(ctx, s.store)
	if err != nil {
		s.finish(ctx, "fetch", "persistence_error")
		return rep, err
	}

	target := market.Target(now.In(s.loc), s.lag)
	rep.Target = target

	got := s.fetchInterval(ctx, target, market.Kinds)
	rep.Outcomes = got.outcomes

	if got.price != nil {
		iv := market.Aggregate(*got.price, got.infeasible, s.limit)
		if iv.Empty() {
			s.logger.Warn().Time("target", target).Msg("no usable prices in interval")
		} else {
			rep.Interval = &iv
			rep.Appended = tables.Fold(iv, false)
			if rep.Appended {
				s.metrics.Appended(NodeTable)
			} else {
				s.logger.Debug().Str("key", iv.Key.String()).Msg("interval already recorded")
			}
		}
	}
	if got.reserve != nil && tables.Reserve.Append(got.reserve.Key(), *got.reserve) {
		s.metrics.Appended(ReserveTable)
	}

	recordUnresolved(tables.Backlog, target, got.outcomes)
	if s.retryBacklog {
		rep.Retried, rep.Resolved = s.retry(ctx, tables, table.NewKey(target, 0))
	}

	if err := s.commit(ctx, tables, now); err != nil {
		s.finish(ctx, "fetch", "persistence_error")
		return rep, err
	}
	rep.Backlog = tables.Backlog.Len()

	s.writeExports(ctx, tables)
	if snap, ok := intervalSnapshot(tables); ok {
		s.logger.Info().Str("summary", alerting.FormatSummary(snap)).Msg("interval summary")
		s.metrics.Interval(snap.Stats.Max, islandMap(snap.Islands))
	}

	s.logger.Info().
		Time("target", target).
		Bool("appended", rep.Appended).
		Int("backlog", rep.Backlog).
		Int("resolved", rep.Resolved).
		Msg("fetch cycle complete")
	s.finish(ctx, "fetch", "ok")
	return rep, nil
}

// RunBacklog retries unresolved intervals without fetching a new one.
func (s *Service) RunBacklog(ctx context.Context, now time.Time) (Report, error) {
	rep := Report{Outcomes: make(map[market.Kind]Outcome)}
	if s.orch == nil {
		return rep, errors.New("fetcher not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return rep, err
	}
	if !proceed {
		rep.Skipped = true
		return rep, nil
	}
	if unlock != nil {
		defer unlock()
	}

	tables, err := LoadTables(ctx, s.store)
	if err != nil {
		s.finish(ctx, "backlog", "persistence_error")
		return rep, err
	}

	rep.Retried, rep.Resolved = s.retry(ctx, tables, table.Key{})
	if err := s.commit(ctx, tables, now); err != nil {
		s.finish(ctx, "backlog", "persistence_error")
		return rep, err
	}
	rep.Backlog = tables.Backlog.Len()
	if rep.Resolved > 0 {
		s.writeExports(ctx, tables)
	}

	s.logger.Info().Int("retried", rep.Retried).Int("resolved", rep.Resolved).Int("backlog", rep.Backlog).Msg("backlog pass complete")
	s.finish(ctx, "backlog", "ok")
	return rep, nil
}

func (s *Service) commit(ctx context.Context, tables *Tables, now time.Time) error {
	if n := tables.Crop(s.retention, s.statsWindow); n > 0 {
		s.logger.Debug().Int("columns", n).Msg("cropped expired columns")
	}
	pruneBacklog(tables.Backlog, now.Add(-s.retention.Duration()))
	s.metrics.Backlog(tables.Backlog.Len())
	return tables.Save(ctx, s.store)
}

func (s *Service) writeExports(ctx context.Context, tables *Tables) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.Export(ctx, tables.ExportSet()); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

func (s *Service) finish(ctx context.Context, job, outcome string) {
	s.metrics.Cycle(job, outcome)
	if outcome == "ok" {
		s.metrics.Succeeded()
	}
	if err := s.pusher.Push(ctx, s.metrics); err != nil {
		s.logger.Warn().Err(err).Msg("push metrics failed")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func islandMap(s table.Series) map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, p := range s {
		out[p.Label] = p.Value
	}
	return out
}
