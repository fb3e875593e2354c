package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ngoprog/alertengine/internal/alerting"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
)

const dateLayout = "2006-01-02"

// EvaluateBody is the body of POST /alerts/evaluate.
type EvaluateBody struct {
	ProgramID  *uint  `json:"program_id,omitempty"`
	CutoffDate string `json:"cutoff_date,omitempty"`
	DryRun     bool   `json:"dry_run"`
}

// EvaluateResponse carries the run summary and the newest stored alerts.
type EvaluateResponse struct {
	Summary      alerting.RunSummary `json:"summary"`
	RecentAlerts []entities.Alert    `json:"recent_alerts"`
}

func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")
	alerts.POST("/evaluate", c.EvaluateAlerts)
	alerts.GET("", c.ListAlerts)
	alerts.GET("/:id", c.GetAlert)
	alerts.PATCH("/:id/state", c.ChangeAlertState)
}

// EvaluateAlerts runs the engine on demand. An aborted run answers 503 with
// the partial summary.
func (c *Controller) EvaluateAlerts(ctx echo.Context) error {
	if !c.runLimiter.Allow() {
		return errorJSON(ctx, http.StatusTooManyRequests, "Too many evaluation requests")
	}

	var body EvaluateBody
	if err := ctx.Bind(&body); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	cutoff := conf.Today(c.now(), c.location)
	if body.CutoffDate != "" {
		d, err := time.ParseInLocation(dateLayout, body.CutoffDate, time.UTC)
		if err != nil {
			return errorJSON(ctx, http.StatusBadRequest, "cutoff_date must be YYYY-MM-DD")
		}
		cutoff = d
	}

	reqCtx := ctx.Request().Context()
	summary, err := c.engine.Evaluate(reqCtx, alerting.EvaluateRequest{
		CutoffDate: cutoff,
		ProgramID:  body.ProgramID,
		DryRun:     body.DryRun,
		Origin:     alerting.OriginManual,
	})
	if err != nil {
		c.logger.Error("manual evaluation aborted",
			logger.Int("errors", summary.Errors),
			logger.Error(err))
		return ctx.JSON(http.StatusServiceUnavailable, map[string]any{
			"error":   "Evaluation aborted",
			"summary": summary,
		})
	}

	resp := EvaluateResponse{Summary: summary, RecentAlerts: []entities.Alert{}}
	if c.lifecycle != nil {
		recent, err := c.lifecycle.Recent(reqCtx, body.ProgramID, c.Settings.Alerting.RecentAlerts)
		if err != nil {
			return c.internalError(ctx, err, "Failed to load recent alerts")
		}
		if recent != nil {
			resp.RecentAlerts = recent
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// ListAlerts returns a filtered page of alerts, newest first.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{
		State:    entities.AlertState(ctx.QueryParam("state")),
		Severity: entities.Severity(ctx.QueryParam("severity")),
	}
	if filter.State != "" && !filter.State.Valid() {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid state")
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid severity")
	}

	var err error
	if filter.ProgramID, err = optionalUint(ctx.QueryParam("program_id")); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid program_id")
	}
	if filter.RuleID, err = optionalUint(ctx.QueryParam("rule_id")); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule_id")
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := ctx.QueryParam(name)
		if raw == "" {
			continue
		}
		d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return errorJSON(ctx, http.StatusBadRequest, "Invalid "+name+" date")
		}
		*dst = &d
	}
	if filter.To != nil {
		// Inclusive end date.
		end := filter.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &end
	}
	filter.Limit, filter.Offset = pagination(ctx)

	alerts, total, err := c.lifecycle.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.internalError(ctx, err, "Failed to list alerts")
	}
	if alerts == nil {
		alerts = []entities.Alert{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetAlert returns one alert by ID.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid alert ID")
	}
	alert, err := c.lifecycle.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return errorJSON(ctx, http.StatusNotFound, "Alert not found")
		}
		return c.internalError(ctx, err, "Failed to get alert")
	}
	return ctx.JSON(http.StatusOK, alert)
}

// ChangeAlertState closes an alert as Resolved or Dismissed.
func (c *Controller) ChangeAlertState(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid alert ID")
	}
	var req alerting.ChangeStateRequest
	if err := ctx.Bind(&req); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	alert, err := c.lifecycle.ChangeState(ctx.Request().Context(), id, req)
	switch {
	case err == nil:
		return ctx.JSON(http.StatusOK, alert)
	case errors.Is(err, repository.ErrAlertNotFound):
		return errorJSON(ctx, http.StatusNotFound, "Alert not found")
	case errors.Is(err, repository.ErrAlertConflict):
		return errorJSON(ctx, http.StatusConflict, "Alert was modified by another operator; reload and retry")
	case errors.Is(err, repository.ErrInvalidTransition):
		return errorJSON(ctx, http.StatusUnprocessableEntity, "Alert is already closed")
	case errors.IsCategory(err, errors.CategoryValidation):
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	default:
		return c.internalError(ctx, err, "Failed to change alert state")
	}
}
