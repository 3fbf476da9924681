package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"witswatch/internal/alerting"
	"witswatch/internal/config"
	"witswatch/internal/export"
	"witswatch/internal/fetcher"
	"witswatch/internal/metrics"
	"witswatch/internal/scheduler"
	"witswatch/internal/service"
	"witswatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() *fetcher.FTP {
	cfg := a.Config.FTP
	return fetcher.NewFTP(fetcher.FTPOptions{
		Host:      cfg.Host,
		User:      cfg.User,
		Password:  cfg.Password,
		Timeout:   cfg.Timeout,
		ProxyHost: cfg.ProxyHost,
		ProxyPort: cfg.ProxyPort,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	var out alerting.Multi
	for _, ch := range a.Config.Alerting.Channels {
		switch ch {
		case "smtp":
			cfg := a.Config.Alerting.SMTP
			out = append(out, alerting.NewSMTPNotifier(alerting.SMTPOptions{
				Host:     cfg.Host,
				Port:     cfg.Port,
				Username: cfg.Username,
				Password: cfg.Password,
				Sender:   cfg.Sender,
				Timeout:  cfg.Timeout,
			}, a.Logger))
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			out = append(out, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger))
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (a *App) recipients() service.RecipientSource {
	if !slices.Contains(a.Config.Alerting.Channels, "smtp") || a.Config.Alerting.SMTP.Phonebook == "" {
		return nil
	}
	cfg := a.Config.Alerting.SMTP
	return func(ctx context.Context) ([]string, error) {
		return alerting.LoadRecipients(cfg.Phonebook, cfg.AddressField)
	}
}

func (a *App) newExporter() service.Exporter {
	if a.Config.Export.Dir == "" {
		return nil
	}
	return export.NewWriter(a.Config.Export.Dir, a.Config.Export.PNG, a.Config.Export.MaxDataPoints, a.Logger)
}

func (a *App) newPusher() *metrics.Pusher {
	return metrics.NewPusher(a.Config.Metrics.PushgatewayURL, a.Config.Metrics.Job, map[string]string{
		"environment": a.Config.App.Environment,
	})
}

// openStore opens the configured blob store. The returned func releases it.
func (a *App) openStore(ctx context.Context) (storage.BlobStore, func(), error) {
	switch a.Config.Storage.Driver {
	case "postgres":
		store, err := storage.OpenPostgres(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "file", "":
		store, err := storage.NewFileStore(a.Config.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", a.Config.Storage.Driver)
	}
}

// session is one wired service plus its release func.
type session struct {
	svc   *service.Service
	close func()
}

func (a *App) newSession(store storage.BlobStore, withFetcher bool) *session {
	deps := service.Deps{
		Store:      store,
		Notifier:   a.newNotifier(),
		Recipients: a.recipients(),
		Exporter:   a.newExporter(),
		Metrics:    metrics.NewRecorder(),
		Pusher:     a.newPusher(),
	}
	closeFn := func() {}
	if withFetcher {
		ftp := a.newFetcher()
		deps.Fetcher = ftp
		closeFn = func() {
			if err := ftp.Close(); err != nil {
				a.Logger.Debug().Err(err).Msg("ftp quit")
			}
		}
	}
	return &session{svc: service.New(a.Config, deps, a.Logger), close: closeFn}
}

// Run executes the long-running monitoring service: a fetch cycle every
// interval and an alert check every alert_every intervals.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Offset:       a.Config.Scheduler.Offset,
	}, a.Logger)

	jobs := []scheduler.Job{{
		Name: "fetch",
		Run: func(ctx context.Context, bucket time.Time) error {
			s := a.newSession(store, true)
			defer s.close()
			_, err := s.svc.RunFetch(ctx, time.Now())
			return err
		},
	}, {
		Name:  "alert",
		Every: a.Config.Scheduler.AlertEvery,
		Run: func(ctx context.Context, bucket time.Time) error {
			s := a.newSession(store, false)
			defer s.close()
			_, err := s.svc.RunAlert(ctx)
			return err
		},
	}}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting monitoring service")
	err = sched.Run(ctx, jobs...)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// FetchOptions configure a single fetch cycle.
type FetchOptions struct {
	At *time.Time
}

// ExportOptions hold parameters for writing derived files on demand.
type ExportOptions struct {
	Dir       string
	PNG       bool
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Table string
	Limit int
}

// BackfillOptions configure a replay of past intervals.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// SimulateOptions describe a synthetic snapshot for simulate-alert.
type SimulateOptions struct {
	Node   string
	Max    string
	North  string
	South  string
	Period int
}
