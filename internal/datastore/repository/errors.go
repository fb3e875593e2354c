package repository

import "github.com/ngoprog/alertengine/internal/errors"

var (
	ErrRuleNotFound   = errors.NewStd("rule not found")
	ErrRuleInUse      = errors.NewStd("rule is referenced by alerts")
	ErrRuleKeyTaken   = errors.NewStd("a rule with this key already exists")
	ErrConfigNotFound = errors.NewStd("configuration key not found")
	ErrConfigInUse    = errors.NewStd("configuration key has program overrides")

	ErrAlertNotFound      = errors.NewStd("alert not found")
	ErrAlertConflict      = errors.NewStd("alert was modified concurrently")
	ErrInvalidTransition  = errors.NewStd("invalid alert state transition")
	ErrDuplicateOpenAlert = errors.NewStd("an open alert already exists for this rule and subject")
)

// notFound tags a sentinel with the not-found category for callers that map
// categories rather than sentinels.
func notFound(sentinel error, key string, value any) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context(key, value).
		Build()
}

// dbError wraps a driver error as a transient database failure.
func dbError(op string, err error) error {
	return errors.Newf("failed to %s: %w", op, err).
		Component("datastore").
		Category(errors.CategoryTransientIO).
		Build()
}
