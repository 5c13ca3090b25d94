package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/timecube"
	"tasksync/internal/usecase"
)

var Version = "dev"

type options struct {
	configPath string
	verbose    bool
	at         string
}

func main() {
	var opts options
	rootCmd := &cobra.Command{
		Use:           "tasksync",
		Short:         "Reconcile tasks, projects and activities between Marvin, Notion and Garmin",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (env vars override it)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&opts.at, "at", "", "Replay the windows of this instant (RFC3339 or YYYY-MM-DD)")

	rootCmd.AddCommand(
		stageCmd(&opts, "run", "Run every configured stage once"),
		stageCmd(&opts, "tasks", "Push recently updated Marvin tasks to Notion", usecase.StageTasks),
		stageCmd(&opts, "today", "Push tasks scheduled yesterday and today to Notion", usecase.StageToday),
		stageCmd(&opts, "projects", "Push recently updated Marvin projects to Notion", usecase.StageProjects),
		stageCmd(&opts, "reverse", "Push recently edited Notion tasks back to Marvin", usecase.StageReverse),
		stageCmd(&opts, "activities", "Import yesterday's and today's Garmin activities into Notion", usecase.StageActivities),
		stageCmd(&opts, "delete", "Delete tasks flagged in Notion from both stores", usecase.StageDelete),
		stageCmd(&opts, "trackers", "Copy current Notion tracker values to Marvin trackers", usecase.StageTrackers),
		stageCmd(&opts, "daily", "Write today's Garmin totals to the Notion daily tracking page", usecase.StageDaily),
		serveCmd(&opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func setup(opts *options) (*slog.Logger, config.Config, *app.App, error) {
	logger := newLogger(opts.verbose)
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return logger, cfg, nil, fmt.Errorf("load config: %w", err)
	}
	application, err := app.New(logger, cfg)
	if err != nil {
		return logger, cfg, nil, fmt.Errorf("initialize app: %w", err)
	}
	return logger, cfg, application, nil
}

// stageCmd runs the given stages once; no stages means a full run.
func stageCmd(opts *options, use, short string, stages ...usecase.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, application, err := setup(opts)
			if err != nil {
				return err
			}
			defer application.Close()

			var at timecube.Instant
			if opts.at != "" {
				if at, err = timecube.Parse(opts.at, cfg.Sync.Timezone); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sum, err := application.RunOnce(ctx, at, stages...)
			if err != nil {
				return err
			}
			for _, r := range sum.Reports {
				logger.Info("report", slog.String("summary", r.String()))
				for _, u := range r.Unresolved {
					logger.Warn("unresolved dependency", slog.String("stage", r.Stage), slog.String("pair", u))
				}
			}
			if len(sum.Errors) > 0 {
				return fmt.Errorf("%d stage(s) failed: %v", len(sum.Errors), sum.Errors)
			}
			return nil
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger endpoint and run the cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, application, err := setup(opts)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return application.Serve(ctx, cfg.HTTP.Addr, cfg.Schedule)
		},
	}
}
