package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
)

// ConfigValueBody is the body of the config PUT endpoints.
type ConfigValueBody struct {
	Value       *string `json:"value"`
	Description string  `json:"description,omitempty"`
}

func (c *Controller) initConfigRoutes() {
	cfg := c.Group.Group("/config")
	cfg.GET("", c.ListConfig)
	cfg.PUT("/:key", c.PutConfig)
	cfg.DELETE("/:key", c.DeleteConfig)

	programs := c.Group.Group("/programs/:program_id/config")
	programs.GET("", c.ListProgramConfig)
	programs.PUT("/:key", c.PutProgramOverride)
	programs.DELETE("/:key", c.DeleteProgramOverride)
	programs.GET("/:key/effective", c.GetEffectiveConfig)
}

// ListConfig returns every global configuration entry.
func (c *Controller) ListConfig(ctx echo.Context) error {
	entries, err := c.configs.ListEntries(ctx.Request().Context())
	if err != nil {
		return c.internalError(ctx, err, "Failed to list configuration")
	}
	if entries == nil {
		entries = []entities.ConfigEntry{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{"entries": entries})
}

// PutConfig creates or updates a global entry.
func (c *Controller) PutConfig(ctx echo.Context) error {
	key, body, err := bindConfigValue(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	}
	entry := &entities.ConfigEntry{Key: key, Value: *body.Value, Description: body.Description}
	if err := c.configs.UpsertEntry(ctx.Request().Context(), entry); err != nil {
		return c.configError(ctx, err, "Failed to save configuration")
	}
	c.logger.Info("configuration entry saved",
		logger.String("key", key),
		logger.Int("version", entry.Version))
	return ctx.JSON(http.StatusOK, entry)
}

// DeleteConfig removes a global entry that has no overrides.
func (c *Controller) DeleteConfig(ctx echo.Context) error {
	if err := c.configs.DeleteEntry(ctx.Request().Context(), ctx.Param("key")); err != nil {
		return c.configError(ctx, err, "Failed to delete configuration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListProgramConfig returns the program's overrides and its effective view of
// every key.
func (c *Controller) ListProgramConfig(ctx echo.Context) error {
	programID, err := parseUintParam(ctx, "program_id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid program ID")
	}
	reqCtx := ctx.Request().Context()
	overrides, err := c.configs.ListOverrides(reqCtx, &programID)
	if err != nil {
		return c.internalError(ctx, err, "Failed to list overrides")
	}
	if overrides == nil {
		overrides = []entities.ConfigOverride{}
	}
	snapshot, err := c.resolver.Snapshot(reqCtx)
	if err != nil {
		return c.internalError(ctx, err, "Failed to load configuration")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"program_id": programID,
		"overrides":  overrides,
		"effective":  snapshot.Effective(&programID),
	})
}

// PutProgramOverride creates or updates a program override of an existing key.
func (c *Controller) PutProgramOverride(ctx echo.Context) error {
	programID, err := parseUintParam(ctx, "program_id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid program ID")
	}
	key, body, err := bindConfigValue(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, err.Error())
	}
	override := &entities.ConfigOverride{ProgramID: programID, Key: key, Value: *body.Value}
	if err := c.configs.UpsertOverride(ctx.Request().Context(), override); err != nil {
		return c.configError(ctx, err, "Failed to save override")
	}
	c.logger.Info("configuration override saved",
		logger.Uint64("program_id", uint64(programID)),
		logger.String("key", key))
	return ctx.JSON(http.StatusOK, override)
}

// DeleteProgramOverride removes a program override.
func (c *Controller) DeleteProgramOverride(ctx echo.Context) error {
	programID, err := parseUintParam(ctx, "program_id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid program ID")
	}
	if err := c.configs.DeleteOverride(ctx.Request().Context(), programID, ctx.Param("key")); err != nil {
		return c.configError(ctx, err, "Failed to delete override")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetEffectiveConfig resolves one key for a program and reports its source.
func (c *Controller) GetEffectiveConfig(ctx echo.Context) error {
	programID, err := parseUintParam(ctx, "program_id")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid program ID")
	}
	value, err := c.resolver.ResolveWithSource(ctx.Request().Context(), ctx.Param("key"), &programID)
	if err != nil {
		return c.configError(ctx, err, "Failed to resolve configuration")
	}
	return ctx.JSON(http.StatusOK, value)
}

func bindConfigValue(ctx echo.Context) (string, ConfigValueBody, error) {
	var body ConfigValueBody
	key := strings.TrimSpace(ctx.Param("key"))
	if key == "" {
		return "", body, errors.NewStd("configuration key is required")
	}
	if err := ctx.Bind(&body); err != nil {
		return "", body, errors.NewStd("invalid request body")
	}
	if body.Value == nil {
		return "", body, errors.NewStd("value is required")
	}
	return key, body, nil
}

func (c *Controller) configError(ctx echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrConfigNotFound):
		return errorJSON(ctx, http.StatusNotFound, "Configuration key not found")
	case errors.Is(err, repository.ErrConfigInUse):
		return errorJSON(ctx, http.StatusConflict, "Configuration key has program overrides")
	default:
		return c.internalError(ctx, err, msg)
	}
}
