package alerting

import (
	"context"
	"strings"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/observability/metrics"
)

// maxCommentLength matches the alerts.comment column.
const maxCommentLength = 2000

// ChangeStateRequest is an operator's request to close an alert.
type ChangeStateRequest struct {
	NewState         entities.AlertState `json:"new_state"`
	Comment          *string             `json:"comment,omitempty"`
	ConcurrencyToken string              `json:"concurrency_token"`
}

// Lifecycle applies operator state changes to alerts.
type Lifecycle struct {
	alerts  repository.AlertRepository
	metrics *metrics.AlertingMetrics
	now     func() time.Time
	log     logger.Logger
}

// NewLifecycle creates the alert lifecycle service.
func NewLifecycle(alerts repository.AlertRepository, m *metrics.AlertingMetrics, log logger.Logger) *Lifecycle {
	return &Lifecycle{
		alerts:  alerts,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.Module("lifecycle"),
	}
}

// ChangeState moves an Open alert to a terminal state when the caller's
// concurrency token is current. It returns ErrAlertNotFound, ErrAlertConflict
// or ErrInvalidTransition, in that order of precedence, without writing.
func (l *Lifecycle) ChangeState(ctx context.Context, id uint, req ChangeStateRequest) (*entities.Alert, error) {
	if !req.NewState.Valid() {
		return nil, requestError("unknown state %q", req.NewState)
	}
	if strings.TrimSpace(req.ConcurrencyToken) == "" {
		return nil, requestError("concurrency_token is required")
	}
	if req.Comment != nil && len(*req.Comment) > maxCommentLength {
		return nil, requestError("comment exceeds %d characters", maxCommentLength)
	}

	alert, err := l.alerts.ChangeState(ctx, id, repository.StateChange{
		NewState:        req.NewState,
		Comment:         req.Comment,
		ExpectedVersion: req.ConcurrencyToken,
		At:              l.now(),
	})
	result := stateChangeResult(err)
	l.metrics.StateChange(string(req.NewState), result)
	if err != nil {
		fields := []logger.Field{
			logger.Uint64("alert_id", uint64(id)),
			logger.String("new_state", string(req.NewState)),
			logger.String("result", result),
			logger.Error(err),
		}
		if result == "error" {
			l.log.Error("alert state change failed", fields...)
		} else {
			l.log.Info("alert state change rejected", fields...)
		}
		return nil, err
	}

	l.log.Info("alert state changed",
		logger.Uint64("alert_id", uint64(id)),
		logger.String("rule_key", alert.RuleKey),
		logger.String("state", string(alert.State)))
	return alert, nil
}

// Get returns one alert.
func (l *Lifecycle) Get(ctx context.Context, id uint) (*entities.Alert, error) {
	return l.alerts.GetAlert(ctx, id)
}

// List returns a page of alerts and the total matching the filter.
func (l *Lifecycle) List(ctx context.Context, filter repository.AlertFilter) ([]entities.Alert, int64, error) {
	alerts, err := l.alerts.ListAlerts(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.alerts.CountAlerts(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// Recent returns the newest alerts, for display after a manual run.
func (l *Lifecycle) Recent(ctx context.Context, programID *uint, limit int) ([]entities.Alert, error) {
	return l.alerts.ListAlerts(ctx, repository.AlertFilter{ProgramID: programID, Limit: limit})
}

func stateChangeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrAlertNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrAlertConflict):
		return "conflict"
	case errors.Is(err, repository.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}

func requestError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("lifecycle").
		Category(errors.CategoryValidation).
		Build()
}
