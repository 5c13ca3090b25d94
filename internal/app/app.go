package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"tasksync/internal/adapter/garmin"
	"tasksync/internal/adapter/marvin"
	msql "tasksync/internal/adapter/mysql"
	"tasksync/internal/adapter/notion"
	"tasksync/internal/clock"
	"tasksync/internal/config"
	"tasksync/internal/migrate"
	"tasksync/internal/reconcile"
	"tasksync/internal/throttle"
	"tasksync/internal/timecube"
	"tasksync/internal/usecase"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("sync already running")

const httpTimeout = 30 * time.Second

// App wires adapters and use cases.
type App struct {
	log     *slog.Logger
	uc      *usecase.SyncUseCase
	sem     *semaphore.Weighted
	timeout time.Duration
	closers []func() error
}

func New(log *slog.Logger, cfg config.Config) (*App, error) {
	sysClock, err := clock.NewSystem(cfg.Sync.Timezone)
	if err != nil {
		return nil, err
	}
	httpc := throttle.Client(httpTimeout, cfg.Sync.Rate)

	uc := &usecase.SyncUseCase{
		Log: log,
		Marvin: marvin.NewClient(marvin.Config{
			APIURL:   cfg.Marvin.APIURL,
			APIToken: cfg.Marvin.APIToken,
			CouchURL: cfg.Marvin.CouchURL,
			Database: cfg.Marvin.Database,
			User:     cfg.Marvin.User,
			Password: cfg.Marvin.Password,
		}, httpc, log),
		Notion:  notion.NewClient(cfg.Notion.BaseURL, cfg.Notion.Token, httpc, log),
		Clock:   sysClock,
		DBs:     usecase.NotionDatabases(cfg.Notion.Databases),
		TZ:      cfg.Sync.Timezone,
		Window:  cfg.Sync.Window,
		Horizon: cfg.Sync.Horizon,
		Reverse: cfg.Sync.Reverse,
	}
	if cfg.Garmin.Token != "" {
		uc.Garmin = garmin.NewClient(cfg.Garmin.BaseURL, cfg.Garmin.Token, httpc, log)
	}

	a := newApp(log, uc, cfg.Sync.Timeout)
	if cfg.MySQL.DSN != "" {
		// Run migrations before opening the sink for use
		if err := migrate.Run(context.Background(), cfg.MySQL.DSN, log); err != nil {
			return nil, err
		}
		sink, err := msql.NewClient(context.Background(), cfg.MySQL.DSN, log)
		if err != nil {
			return nil, err
		}
		uc.Sink = sink
		a.closers = append(a.closers, sink.Close)
	} else {
		log.Info("no MYSQL_DSN, run history is not recorded")
	}
	return a, nil
}

func newApp(log *slog.Logger, uc *usecase.SyncUseCase, timeout time.Duration) *App {
	return &App{log: log, uc: uc, sem: semaphore.NewWeighted(1), timeout: timeout}
}

// Stages returns the stages of a full run.
func (a *App) Stages() []usecase.Stage { return a.uc.DefaultStages() }

// RunOnce executes the given stages, or a full run when none are given. A
// non-zero at replaces the clock, which replays the windows of that instant.
func (a *App) RunOnce(ctx context.Context, at timecube.Instant, stages ...usecase.Stage) (*reconcile.RunSummary, error) {
	if !a.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer a.sem.Release(1)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	uc := a.uc
	if !at.IsZero() {
		replay := *a.uc
		replay.Clock = clock.Fixed{At: at}
		uc = &replay
	}
	return uc.Run(ctx, stages...)
}

// Close releases the sink connection, if any.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
