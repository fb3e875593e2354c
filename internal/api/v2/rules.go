package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ngoprog/alertengine/internal/alerting"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
)

func (c *Controller) initRuleRoutes() {
	rules := c.Group.Group("/rules")
	rules.GET("", c.ListRules)
	rules.GET("/triggers", c.ListTriggers)
	rules.GET("/:id", c.GetRule)
	rules.POST("", c.CreateRule)
	rules.PUT("/:id", c.UpdateRule)
	rules.PATCH("/:id/toggle", c.ToggleRule)
	rules.DELETE("/:id", c.DeleteRule)
}

// ListTriggers returns the registered trigger catalog for rule editors.
func (c *Controller) ListTriggers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{"triggers": c.registry.Describe()})
}

// ListRules returns rules, optionally filtered by objective_kind and active.
func (c *Controller) ListRules(ctx echo.Context) error {
	filter := repository.RuleFilter{ObjectiveKind: entities.ObjectiveKind(ctx.QueryParam("objective_kind"))}
	if filter.ObjectiveKind != "" && !filter.ObjectiveKind.Valid() {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid objective_kind")
	}
	switch ctx.QueryParam("active") {
	case "":
	case "true":
		v := true
		filter.Active = &v
	case "false":
		v := false
		filter.Active = &v
	default:
		return errorJSON(ctx, http.StatusBadRequest, "active must be true or false")
	}

	rules, err := c.rules.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		return c.internalError(ctx, err, "Failed to list rules")
	}
	if rules == nil {
		rules = []entities.Rule{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule returns a single rule by ID.
func (c *Controller) GetRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}
	rule, err := c.rules.GetRule(ctx.Request().Context(), id)
	if err != nil {
		return c.ruleError(ctx, err, "Failed to get rule")
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateRule validates a rule against the trigger registry and stores it.
func (c *Controller) CreateRule(ctx echo.Context) error {
	var rule entities.Rule
	if err := ctx.Bind(&rule); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}
	rule.ID = 0
	for i := range rule.Parameters {
		rule.Parameters[i].ID = 0
		rule.Parameters[i].RuleID = 0
	}
	if err := alerting.ValidateRule(&rule, c.registry); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.rules.CreateRule(ctx.Request().Context(), &rule); err != nil {
		return c.ruleError(ctx, err, "Failed to create rule")
	}
	c.logger.Info("rule created",
		logger.String("key", rule.Key),
		logger.Uint64("id", uint64(rule.ID)))
	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateRule replaces a rule and its parameters.
func (c *Controller) UpdateRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}
	var rule entities.Rule
	if err := ctx.Bind(&rule); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}
	rule.ID = id
	if err := alerting.ValidateRule(&rule, c.registry); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.rules.UpdateRule(ctx.Request().Context(), &rule); err != nil {
		return c.ruleError(ctx, err, "Failed to update rule")
	}
	c.logger.Info("rule updated",
		logger.String("key", rule.Key),
		logger.Int("version", rule.Version))
	return ctx.JSON(http.StatusOK, rule)
}

// ToggleRule activates or deactivates a rule.
func (c *Controller) ToggleRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := ctx.Bind(&body); err != nil || body.Active == nil {
		return errorJSON(ctx, http.StatusBadRequest, "Body must be {\"active\": true|false}")
	}

	if err := c.rules.ToggleRule(ctx.Request().Context(), id, *body.Active); err != nil {
		return c.ruleError(ctx, err, "Failed to toggle rule")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "active": *body.Active})
}

// DeleteRule removes a rule that no alert references.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid rule ID")
	}
	if err := c.rules.DeleteRule(ctx.Request().Context(), id); err != nil {
		return c.ruleError(ctx, err, "Failed to delete rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) ruleError(ctx echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
		return errorJSON(ctx, http.StatusNotFound, "Rule not found")
	case errors.Is(err, repository.ErrRuleKeyTaken):
		return errorJSON(ctx, http.StatusConflict, "A rule with this key already exists")
	case errors.Is(err, repository.ErrRuleInUse):
		return errorJSON(ctx, http.StatusConflict, "Rule is referenced by alerts; deactivate it instead")
	default:
		return c.internalError(ctx, err, msg)
	}
}
