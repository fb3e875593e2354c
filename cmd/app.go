package cmd

import (
	"context"
	"io"
	"strings"

	"github.com/ngoprog/alertengine/internal/alerting"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/mqtt"
	"github.com/ngoprog/alertengine/internal/notification"
	"github.com/ngoprog/alertengine/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is the assembled runtime shared by the subcommands.
type app struct {
	settings *conf.Settings
	log      logger.Logger

	db        *datastore.Manager
	rules     repository.RuleRepository
	alerts    repository.AlertRepository
	configs   repository.ConfigRepository
	registry  *alerting.Registry
	prom      *prometheus.Registry
	metrics   *metrics.AlertingMetrics
	engine    *alerting.Engine
	lifecycle *alerting.Lifecycle

	publisher *mqtt.Publisher
}

// newLogger builds the process logger from settings.
func newLogger(s conf.LogSettings, w io.Writer, tz string) logger.Logger {
	loc := conf.MainSettings{TimeZone: tz}.Location()
	level := logger.ParseLevel(s.Level)
	if strings.EqualFold(s.Format, "json") {
		return logger.NewJSONLogger(w, level, loc)
	}
	return logger.NewSlogLogger(w, level, loc)
}

// openApp connects the database, migrates it and builds the engine. With
// notify set, the configured sinks are attached to the engine.
func openApp(ctx context.Context, settings *conf.Settings, log logger.Logger, notify bool) (*app, error) {
	db, err := datastore.NewManager(datastore.Config{
		Type: settings.Database.Type,
		Path: settings.Database.Path,
		DSN:  settings.Database.DSN,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	gdb := db.DB()
	a := &app{
		settings: settings,
		log:      log,
		db:       db,
		rules:    repository.NewRuleRepository(gdb),
		alerts:   repository.NewAlertRepository(gdb),
		configs:  repository.NewConfigRepository(gdb),
		registry: alerting.DefaultRegistry(),
		prom:     prometheus.NewRegistry(),
	}
	a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewAlertingMetrics(a.prom)

	if settings.Alerting.SeedDefaults {
		if err := alerting.SeedDefaults(ctx, a.rules, a.configs, a.registry, log); err != nil {
			a.close()
			return nil, err
		}
	}
	if settings.Alerting.CatalogFile != "" {
		if _, err := a.importCatalog(ctx, settings.Alerting.CatalogFile, false); err != nil {
			a.close()
			return nil, err
		}
	}

	var notifiers []alerting.Notifier
	if notify {
		notifiers = a.notifiers(ctx)
	}

	a.engine = alerting.NewEngine(alerting.EngineDeps{
		Rules:    a.rules,
		Subjects: repository.NewSubjectRepository(gdb),
		Features: repository.NewFeatureRepository(gdb),
		Alerts:   a.alerts,
		Config:   a.configs,
	}, log,
		alerting.WithRegistry(a.registry),
		alerting.WithMetrics(a.metrics),
		alerting.WithWorkers(settings.Alerting.Workers),
		alerting.WithLanguage(settings.Main.Language),
		alerting.WithLocation(settings.Main.Location()),
		alerting.WithDispatcher(alerting.NewDispatcher(log.Module("notify"), a.metrics, notifiers...)),
	)
	a.lifecycle = alerting.NewLifecycle(a.alerts, a.metrics, log)
	return a, nil
}

// notifiers builds the enabled sinks. A sink that cannot be set up is logged
// and left out so alerting keeps running without it.
func (a *app) notifiers(ctx context.Context) []alerting.Notifier {
	var out []alerting.Notifier
	if a.settings.MQTT.Enabled {
		p, err := mqtt.NewPublisher(a.settings.MQTT, a.log)
		if err == nil {
			err = p.Connect(ctx)
		}
		if err != nil {
			a.log.Error("mqtt publisher disabled", logger.Error(err))
		} else {
			a.publisher = p
			out = append(out, p)
		}
	}
	if len(a.settings.Notification.URLs) > 0 {
		n, err := notification.NewShoutrrrNotifier(a.settings.Notification, a.log)
		if err != nil {
			a.log.Error("shoutrrr notifier disabled", logger.Error(err))
		} else {
			out = append(out, n)
		}
	}
	return out
}

func (a *app) importCatalog(ctx context.Context, path string, overwrite bool) (alerting.ImportResult, error) {
	cat, err := alerting.LoadCatalogFile(path)
	if err != nil {
		return alerting.ImportResult{}, err
	}
	res, err := alerting.ImportCatalog(ctx, a.rules, a.configs, cat, a.registry, alerting.ImportOptions{Overwrite: overwrite})
	if err != nil {
		return res, err
	}
	a.log.Info("rule catalog imported",
		logger.String("file", path),
		logger.Int("rules_created", res.RulesCreated),
		logger.Int("rules_updated", res.RulesUpdated),
		logger.Int("config_created", res.ConfigCreated),
		logger.Int("config_updated", res.ConfigUpdated))
	return res, nil
}

func (a *app) close() {
	if a.publisher != nil {
		a.publisher.Disconnect()
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", logger.Error(err))
	}
}
