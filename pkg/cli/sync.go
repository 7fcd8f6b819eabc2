package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/minato-lab/leavesync/pkg/cli/config"
	"github.com/minato-lab/leavesync/pkg/usecase"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// newEngine is the shared setup of the one-shot commands
func newEngine(appCfg *config.AppConfig, wecomCfg *config.WeCom, storeCfg *config.Store) (*usecase.UseCase, func(), error) {
	if err := appCfg.Configure(); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load application configuration")
	}

	repo, err := storeCfg.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	client, err := wecomCfg.Configure()
	if err != nil {
		_ = repo.Close()
		return nil, nil, goerr.Wrap(err, "failed to initialize upstream client")
	}

	uc := usecase.New(repo, client,
		usecase.WithBaseline(storeCfg.Baseline()),
		usecase.WithCutoff(storeCfg.Cutoff()),
		usecase.WithLeaveForms(appCfg.LeaveForms()),
	)
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}
	return uc, closer, nil
}

func cmdSync() *cli.Command {
	var appCfg config.AppConfig
	var wecomCfg config.WeCom
	var storeCfg config.Store

	var flags []cli.Flag
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, wecomCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Run one incremental sync cycle and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := newEngine(&appCfg, &wecomCfg, &storeCfg)
			if err != nil {
				return err
			}
			defer closer()

			report, err := uc.RunIncremental(ctx)
			if err != nil {
				return goerr.Wrap(err, "incremental sync failed")
			}
			logging.Default().Info("incremental sync finished",
				"skipped", report.Skipped,
				"approvals", report.Approvals,
				"new_employees", report.Merged.NewEmployees,
				"updated_employees", report.Merged.UpdatedEmployees,
				"tracked", report.Tracked)
			return nil
		},
	}
}

func cmdCheck() *cli.Command {
	var appCfg config.AppConfig
	var wecomCfg config.WeCom
	var storeCfg config.Store

	var flags []cli.Flag
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, wecomCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)

	return &cli.Command{
		Name:  "check",
		Usage: "Run one status-check pass over tracked approvals and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := newEngine(&appCfg, &wecomCfg, &storeCfg)
			if err != nil {
				return err
			}
			defer closer()

			report, err := uc.RunStatusCheck(ctx)
			if err != nil {
				return goerr.Wrap(err, "status check failed")
			}
			logging.Default().Info("status check finished",
				"checked", report.Checked,
				"updated", report.Updated,
				"removed", report.Removed)
			return nil
		},
	}
}
