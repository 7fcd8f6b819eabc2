package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/minato-lab/leavesync/pkg/cli/config"
	httpctrl "github.com/minato-lab/leavesync/pkg/controller/http"
	"github.com/minato-lab/leavesync/pkg/service/holiday"
	"github.com/minato-lab/leavesync/pkg/service/worker"
	"github.com/minato-lab/leavesync/pkg/usecase"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

const shutdownTimeout = 15 * time.Second

func cmdServe() *cli.Command {
	var addr string
	var appCfg config.AppConfig
	var wecomCfg config.WeCom
	var storeCfg config.Store
	var schedulerCfg config.Scheduler

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("LEAVESYNC_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, wecomCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, schedulerCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the sync engine and HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := appCfg.Configure(); err != nil {
				return goerr.Wrap(err, "failed to load application configuration")
			}

			repo, err := storeCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			client, err := wecomCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize upstream client")
			}

			ucOpts := []usecase.Option{
				usecase.WithBaseline(storeCfg.Baseline()),
				usecase.WithCutoff(storeCfg.Cutoff()),
				usecase.WithLeaveForms(appCfg.LeaveForms()),
			}

			codec, err := wecomCfg.ConfigureCodec()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize callback codec")
			}
			if codec != nil {
				ucOpts = append(ucOpts, usecase.WithCodec(codec))
				logging.Default().Info("push callbacks enabled")
			} else {
				logging.Default().Info("callback credentials not configured, running poll-only")
			}

			uc := usecase.New(repo, client, ucOpts...)

			scheduler, err := schedulerCfg.Configure(uc)
			if err != nil {
				return goerr.Wrap(err, "failed to configure scheduler")
			}
			if err := scheduler.Start(ctx, schedulerCfg.SyncEnabled(), schedulerCfg.CheckEnabled()); err != nil {
				return goerr.Wrap(err, "failed to start scheduler")
			}
			defer scheduler.Stop()

			// The drain worker only matters when callbacks can enqueue
			if uc.CallbackConfigured() {
				drainer := worker.NewQueueDrainWorker(uc, worker.DefaultDrainInterval)
				if err := drainer.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start queue drain worker")
				}
				defer drainer.Stop()
			}

			srvOpts := []httpctrl.Options{
				httpctrl.WithScheduler(scheduler),
			}
			if appCfg.Holiday.Enabled {
				var holidayOpts []holiday.Option
				if appCfg.Holiday.BaseURL != "" {
					holidayOpts = append(holidayOpts, holiday.WithBaseURL(appCfg.Holiday.BaseURL))
				}
				srvOpts = append(srvOpts, httpctrl.WithHolidayService(holiday.New(holidayOpts...)))
				logging.Default().Info("holiday calendar endpoint enabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, srvOpts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("HTTP server listening", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Default().Info("shutting down", "signal", sig.String())
			case err := <-errCh:
				return goerr.Wrap(err, "HTTP server failed")
			case <-ctx.Done():
				logging.Default().Info("shutting down", "reason", "context cancelled")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown HTTP server")
			}
			return nil
		},
	}
}
