// Package api implements the /api/v2 operator endpoints: manual evaluation
// runs, alert listing and state changes, rule and configuration management.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ngoprog/alertengine/internal/alerting"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Deps are the services the controller serves.
type Deps struct {
	Engine    alerting.Evaluator
	Lifecycle *alerting.Lifecycle
	Rules     repository.RuleRepository
	Configs   repository.ConfigRepository
	Registry  *alerting.Registry
	Resolver  *alerting.Resolver
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Controller holds the handlers of the v2 API.
type Controller struct {
	Group    *echo.Group
	Settings *conf.Settings

	engine    alerting.Evaluator
	lifecycle *alerting.Lifecycle
	rules     repository.RuleRepository
	configs   repository.ConfigRepository
	registry  *alerting.Registry
	resolver  *alerting.Resolver
	gatherer  prometheus.Gatherer

	// runLimiter throttles manual evaluation runs.
	runLimiter *rate.Limiter
	location   *time.Location
	now        func() time.Time
	logger     logger.Logger
}

// New creates the controller and registers its routes under e's /api/v2.
func New(e *echo.Echo, settings *conf.Settings, deps Deps, log logger.Logger) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	if deps.Registry == nil {
		deps.Registry = alerting.DefaultRegistry()
	}
	if deps.Resolver == nil && deps.Configs != nil {
		deps.Resolver = alerting.NewResolver(deps.Configs)
	}

	limit := rate.Limit(settings.WebServer.RateLimit)
	if settings.WebServer.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := max(settings.WebServer.Burst, 1)

	c := &Controller{
		Group:      e.Group("/api/v2"),
		Settings:   settings,
		engine:     deps.Engine,
		lifecycle:  deps.Lifecycle,
		rules:      deps.Rules,
		configs:    deps.Configs,
		registry:   deps.Registry,
		resolver:   deps.Resolver,
		gatherer:   deps.Gatherer,
		runLimiter: rate.NewLimiter(limit, burst),
		location:   settings.Main.Location(),
		now:        time.Now,
		logger:     log.Module("api"),
	}
	c.initRoutes(e)
	return c
}

func (c *Controller) initRoutes(e *echo.Echo) {
	c.Group.GET("/health", c.Health)
	c.initAlertRoutes()
	c.initRuleRoutes()
	c.initConfigRoutes()

	if c.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})))
	}
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errorJSON(ctx echo.Context, status int, msg string) error {
	return ctx.JSON(status, map[string]string{"error": msg})
}

// internalError logs err and answers 500 with a generic message.
func (c *Controller) internalError(ctx echo.Context, err error, msg string) error {
	c.logger.Error(msg,
		logger.String("path", ctx.Path()),
		logger.Error(err))
	return errorJSON(ctx, http.StatusInternalServerError, msg)
}

func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// optionalUint parses an optional query parameter. An empty value yields nil.
func optionalUint(raw string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(v)
	return &id, nil
}

// pagination reads limit and offset, clamping limit to maxListLimit.
func pagination(ctx echo.Context) (limit, offset int) {
	limit = defaultListLimit
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, maxListLimit)
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
