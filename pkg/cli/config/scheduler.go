package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/minato-lab/leavesync/pkg/service/worker"
	"github.com/minato-lab/leavesync/pkg/usecase"
)

type Scheduler struct {
	syncSpec     string
	syncEnabled  bool
	checkSpec    string
	checkEnabled bool
}

func (x *Scheduler) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sync-interval",
			Usage:       "Cron expression of the incremental poller",
			Category:    "Scheduler",
			Value:       worker.DefaultCronSpec,
			Sources:     cli.EnvVars("SYNC_INTERVAL"),
			Destination: &x.syncSpec,
		},
		&cli.BoolFlag{
			Name:        "auto-sync",
			Usage:       "Enable the periodic incremental poller",
			Category:    "Scheduler",
			Value:       true,
			Sources:     cli.EnvVars("AUTO_SYNC_ENABLED"),
			Destination: &x.syncEnabled,
		},
		&cli.StringFlag{
			Name:        "status-check-interval",
			Usage:       "Cron expression of the status checker",
			Category:    "Scheduler",
			Value:       worker.DefaultCronSpec,
			Sources:     cli.EnvVars("STATUS_CHECK_INTERVAL"),
			Destination: &x.checkSpec,
		},
		&cli.BoolFlag{
			Name:        "status-check",
			Usage:       "Enable the periodic status checker",
			Category:    "Scheduler",
			Value:       true,
			Sources:     cli.EnvVars("STATUS_CHECK_ENABLED"),
			Destination: &x.checkEnabled,
		},
	}
}

func (x Scheduler) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("sync-interval", x.syncSpec),
		slog.Bool("auto-sync", x.syncEnabled),
		slog.String("status-check-interval", x.checkSpec),
		slog.Bool("status-check", x.checkEnabled),
	)
}

// SyncEnabled reports whether the incremental poller should run
func (x *Scheduler) SyncEnabled() bool {
	return x.syncEnabled
}

// CheckEnabled reports whether the status checker should run
func (x *Scheduler) CheckEnabled() bool {
	return x.checkEnabled
}

// Validate parses both cron expressions so a bad schedule fails startup
// instead of the first tick.
func (x *Scheduler) Validate() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(x.syncSpec); err != nil {
		return goerr.Wrap(err, "invalid sync cron expression", goerr.V("spec", x.syncSpec))
	}
	if _, err := parser.Parse(x.checkSpec); err != nil {
		return goerr.Wrap(err, "invalid status-check cron expression", goerr.V("spec", x.checkSpec))
	}
	return nil
}

// Configure builds the scheduler
func (x *Scheduler) Configure(uc *usecase.UseCase) (*worker.Scheduler, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}
	return worker.NewScheduler(uc,
		worker.WithSyncSpec(x.syncSpec),
		worker.WithCheckSpec(x.checkSpec),
	), nil
}
