package alerting

import (
	"context"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/observability/metrics"
)

// notifyTimeout bounds a single sink delivery.
const notifyTimeout = 5 * time.Second

// Dispatcher fans newly created alerts out to notifiers. Delivery failures are
// logged and counted but never fail the run that created the alert.
type Dispatcher struct {
	notifiers []Notifier
	metrics   *metrics.AlertingMetrics
	log       logger.Logger
}

// NewDispatcher creates a dispatcher over notifiers. Nil entries are ignored.
func NewDispatcher(log logger.Logger, m *metrics.AlertingMetrics, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{metrics: m, log: log}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

// Len reports how many notifiers are attached.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notifiers)
}

// Dispatch delivers alert to every notifier in order.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *entities.Alert) {
	if d == nil {
		return
	}
	for _, n := range d.notifiers {
		sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		err := n.Notify(sendCtx, alert)
		cancel()
		d.metrics.Notification(n.Name(), err)
		if err != nil {
			d.log.Error("failed to deliver alert notification",
				logger.String("sink", n.Name()),
				logger.Uint64("alert_id", uint64(alert.ID)),
				logger.String("rule_key", alert.RuleKey),
				logger.Error(err))
		}
	}
}
