// Package observability wires error telemetry. Sentry reporting is opt-in and
// every helper is a no-op until Init succeeds.
package observability

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/errors"
)

var enabled atomic.Bool

// Init configures the Sentry client from settings. Disabled settings leave
// telemetry off and return nil.
func Init(settings conf.SentrySettings, release string) error {
	if !settings.Enabled {
		enabled.Store(false)
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return errors.Newf("failed to initialise sentry: %w", err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}
	enabled.Store(true)
	return nil
}

// Enabled reports whether errors are forwarded to Sentry.
func Enabled() bool { return enabled.Load() }

// CaptureError reports err tagged with its component and category.
func CaptureError(err error, component string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("category", string(errors.CategoryOf(err)))
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			for k, v := range ee.Context() {
				scope.SetExtra(k, v)
			}
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(recovered any, component string) {
	if recovered == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		sentry.CurrentHub().Recover(recovered)
	})
}

// Flush waits for buffered events up to timeout.
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentry.Flush(timeout)
}
