// Package api hosts the HTTP server of the alert engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apiv2 "github.com/ngoprog/alertengine/internal/api/v2"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the echo instance serving the operator API.
type Server struct {
	echo       *echo.Echo
	controller *apiv2.Controller
	listen     string
	log        logger.Logger
}

// NewServer builds the server and registers every route.
func NewServer(settings *conf.Settings, deps apiv2.Deps, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, listen: settings.WebServer.Listen, log: log.Module("http")}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.log.Warn("request failed", append(fields, logger.Error(v.Error))...)
				return nil
			}
			s.log.Debug("request", fields...)
			return nil
		},
	}))

	s.controller = apiv2.New(e, settings, deps, log)
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("listen", s.listen))
		if err := s.echo.Start(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Newf("http server failed: %w", err).
				Component("api").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.Newf("http server shutdown: %w", err).Component("api").Build()
	}
	s.log.Info("http server stopped")
	return nil
}
