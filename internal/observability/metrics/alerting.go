// Package metrics defines the Prometheus collectors exported by the alerting
// engine. Collectors are registered against an injected registerer so tests
// can use a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alertengine"

// AlertingMetrics groups the engine, scheduler and lifecycle collectors. A nil
// *AlertingMetrics is valid and records nothing.
type AlertingMetrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	AlertsGenerated     *prometheus.CounterVec
	PairErrors          *prometheus.CounterVec
	RuleValidationError *prometheus.CounterVec
	SkippedTicks        prometheus.Counter
	StateChanges        *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
}

// NewAlertingMetrics creates and registers the collectors with reg.
func NewAlertingMetrics(reg prometheus.Registerer) *AlertingMetrics {
	factory := promauto.With(reg)
	return &AlertingMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of evaluation runs",
			},
			[]string{"trigger", "result"}, // result: ok, aborted, cancelled
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Evaluation run latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"trigger"},
		),
		AlertsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_generated_total",
				Help:      "Alerts generated or simulated by evaluation runs",
			},
			[]string{"rule", "severity", "dry_run"},
		),
		PairErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pair_errors_total",
				Help:      "Failed rule and subject evaluations",
			},
			[]string{"rule", "category"},
		),
		RuleValidationError: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_validation_errors_total",
				Help:      "Rules skipped because their definition failed validation",
			},
			[]string{"rule"},
		),
		SkippedTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_skipped_ticks_total",
				Help:      "Scheduler ticks skipped because a run was still in progress",
			},
		),
		StateChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_state_changes_total",
				Help:      "Alert state change requests",
			},
			[]string{"to", "result"}, // result: ok, conflict, not_found, invalid_transition, error
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Alert notifications delivered to sinks",
			},
			[]string{"sink", "status"}, // status: success, failed
		),
	}
}

func (m *AlertingMetrics) ObserveRun(trigger, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(trigger, result).Inc()
	m.RunDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *AlertingMetrics) AlertGenerated(rule, severity string, dryRun bool) {
	if m == nil {
		return
	}
	label := "false"
	if dryRun {
		label = "true"
	}
	m.AlertsGenerated.WithLabelValues(rule, severity, label).Inc()
}

func (m *AlertingMetrics) PairError(rule, category string) {
	if m == nil {
		return
	}
	m.PairErrors.WithLabelValues(rule, category).Inc()
}

func (m *AlertingMetrics) RuleInvalid(rule string) {
	if m == nil {
		return
	}
	m.RuleValidationError.WithLabelValues(rule).Inc()
}

func (m *AlertingMetrics) TickSkipped() {
	if m == nil {
		return
	}
	m.SkippedTicks.Inc()
}

func (m *AlertingMetrics) StateChange(to, result string) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(to, result).Inc()
}

func (m *AlertingMetrics) Notification(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.Notifications.WithLabelValues(sink, status).Inc()
}
