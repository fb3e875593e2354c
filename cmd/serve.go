package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ngoprog/alertengine/internal/alerting"
	"github.com/ngoprog/alertengine/internal/api"
	apiv2 "github.com/ngoprog/alertengine/internal/api/v2"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/observability"
	"github.com/spf13/cobra"
)

func serveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, flags)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, flags *globalFlags) error {
	settings, log, err := flags.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if err := observability.Init(settings.Sentry, Version); err != nil {
		log.Warn("telemetry disabled", logger.Error(err))
	}
	defer observability.Flush(2 * time.Second)

	a, err := openApp(ctx, settings, log, true)
	if err != nil {
		observability.CaptureError(err, "startup")
		return err
	}
	defer a.close()

	if settings.Alerting.Enabled {
		sched := alerting.NewScheduler(a.engine, alerting.SchedulerConfig{
			Interval:   settings.Alerting.Interval.Std(),
			RunTimeout: settings.Alerting.RunTimeout.Std(),
			Location:   settings.Main.Location(),
		}, a.metrics, log)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	} else {
		log.Info("scheduled evaluation disabled")
	}

	if !settings.WebServer.Enabled {
		log.Info("http server disabled, waiting for shutdown signal")
		<-ctx.Done()
		return nil
	}

	srv := api.NewServer(settings, apiv2.Deps{
		Engine:    a.engine,
		Lifecycle: a.lifecycle,
		Rules:     a.rules,
		Configs:   a.configs,
		Registry:  a.registry,
		Resolver:  a.engine.Resolver(),
		Gatherer:  a.prom,
	}, log)
	if err := srv.Start(ctx); err != nil {
		observability.CaptureError(err, "api")
		return err
	}
	log.Info("shutdown complete")
	return nil
}
