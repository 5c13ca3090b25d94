package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"tasksync/internal/config"
	"tasksync/internal/timecube"
	"tasksync/internal/usecase"
)

type job struct {
	name   string
	spec   string
	stages []usecase.Stage
}

// Scheduler registers the periodic runs: the full sync, the early-morning
// trackers and today pipeline and, when Garmin is configured, the hourly
// wearable import.
func (a *App) Scheduler(ctx context.Context, sched config.Schedule) (*cron.Cron, error) {
	loc, err := timecube.LoadLocation(a.uc.TZ)
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithLocation(loc))

	jobs := []job{
		{"tasks", sched.Tasks, a.Stages()},
		{"today", sched.Today, a.uc.MorningStages()},
	}
	if hourly := a.uc.HourlyStages(); len(hourly) > 0 {
		jobs = append(jobs, job{"activities", sched.Activities, hourly})
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := c.AddFunc(j.spec, func() { a.scheduled(ctx, j.name, j.stages) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		a.log.Info("scheduled", slog.String("job", j.name), slog.String("spec", j.spec))
	}
	return c, nil
}

func (a *App) scheduled(ctx context.Context, name string, stages []usecase.Stage) {
	sum, err := a.RunOnce(ctx, timecube.Instant{}, stages...)
	switch {
	case errors.Is(err, ErrBusy):
		a.log.Warn("scheduled run skipped", slog.String("job", name), slog.String("reason", err.Error()))
	case err != nil:
		a.log.Error("scheduled run failed", slog.String("job", name), slog.String("error", err.Error()))
	default:
		a.log.Info("scheduled run finished", slog.String("job", name), slog.String("run", sum.ID.String()))
	}
}
