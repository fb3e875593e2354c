// Package notification delivers newly created alerts through shoutrrr service
// URLs (ntfy, Slack, Telegram, generic webhooks and the rest).
package notification

import (
	"context"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
	"golang.org/x/text/message"
)

// sender is the part of shoutrrr's service router the notifier uses.
type sender interface {
	Send(message string, params *types.Params) []error
}

// ShoutrrrNotifier sends alerts at or above a minimum severity to every
// configured service URL.
type ShoutrrrNotifier struct {
	sender      sender
	minSeverity entities.Severity
	printer     *message.Printer
	log         logger.Logger
}

// NewShoutrrrNotifier builds a notifier from settings. An empty URL list or a
// URL shoutrrr cannot parse is a configuration error.
func NewShoutrrrNotifier(cfg conf.NotificationSettings, log logger.Logger) (*ShoutrrrNotifier, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("no notification urls configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		return nil, errors.Newf("invalid notification url: %w", err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return newNotifier(router, cfg, log), nil
}

func newNotifier(s sender, cfg conf.NotificationSettings, log logger.Logger) *ShoutrrrNotifier {
	if log == nil {
		log = logger.Discard()
	}
	return &ShoutrrrNotifier{
		sender:      s,
		minSeverity: entities.Severity(cfg.MinSeverity),
		printer:     newPrinter(cfg.Language),
		log:         log.Module("notification"),
	}
}

// Name identifies the sink in logs and metrics.
func (n *ShoutrrrNotifier) Name() string { return "shoutrrr" }

// Accepts reports whether alerts of severity s pass the minimum severity.
func (n *ShoutrrrNotifier) Accepts(s entities.Severity) bool {
	return s.Rank() >= n.minSeverity.Rank()
}

// Notify sends alert to every service. Alerts below the minimum severity are
// skipped without error. shoutrrr has no context support, so a cancelled ctx
// returns early while the send finishes in the background.
func (n *ShoutrrrNotifier) Notify(ctx context.Context, alert *entities.Alert) error {
	if !n.Accepts(alert.Severity) {
		n.log.Debug("alert below notification threshold",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.String("severity", string(alert.Severity)))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := types.Params{"title": title(n.printer, alert)}
	body := body(n.printer, alert)

	done := make(chan error, 1)
	go func() {
		done <- errors.Join(n.sender.Send(body, &params)...)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Newf("notification delivery failed: %w", err).
				Component("notification").
				Category(errors.CategoryTransientIO).
				Context("alert_id", alert.ID).
				Build()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
