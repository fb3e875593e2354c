package alerting

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/observability/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/message"
)

// EvaluateRequest parameterises one evaluation run.
type EvaluateRequest struct {
	// CutoffDate is the calendar date features are computed as of. Only the
	// date part is used.
	CutoffDate time.Time
	// ProgramID restricts the run to one program. Nil means every
	// inference-enabled program.
	ProgramID *uint
	// DryRun computes and counts alerts without duplicate suppression or
	// writes.
	DryRun bool
	Origin RunOrigin
}

// RunSummary is the outcome of one evaluation run.
type RunSummary struct {
	RulesExecuted   int       `json:"rules_executed"`
	AlertsGenerated int       `json:"alerts_generated"`
	Errors          int       `json:"errors"`
	CutoffDate      string    `json:"cutoff_date"`
	ProgramID       *uint     `json:"program_id,omitempty"`
	DryRun          bool      `json:"dry_run"`
	Cancelled       bool      `json:"cancelled"`
	Origin          RunOrigin `json:"origin"`
	StartedAt       time.Time `json:"started_at"`
	DurationMS      int64     `json:"duration_ms"`
	// Simulated holds the candidate alerts of a dry run.
	Simulated []entities.Alert `json:"simulated,omitempty"`
}

// EngineDeps are the collaborators an Engine reads and writes through.
type EngineDeps struct {
	Rules    RuleSource
	Subjects SubjectSource
	Features FeatureProvider
	Alerts   AlertWriter
	Config   ConfigSource
}

// Engine evaluates the active rule catalog against eligible subjects.
type Engine struct {
	deps       EngineDeps
	resolver   *Resolver
	registry   *Registry
	dispatcher *Dispatcher
	metrics    *metrics.AlertingMetrics
	printer    *message.Printer
	workers    int
	now        func() time.Time
	location   *time.Location
	log        logger.Logger

	// Serialises dedup check and insert per rule and subject across
	// concurrent runs.
	locks *keyedMutex
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithRegistry replaces the built-in trigger registry.
func WithRegistry(r *Registry) EngineOption { return func(e *Engine) { e.registry = r } }

// WithDispatcher attaches notifiers for newly created alerts.
func WithDispatcher(d *Dispatcher) EngineOption { return func(e *Engine) { e.dispatcher = d } }

// WithMetrics records run metrics.
func WithMetrics(m *metrics.AlertingMetrics) EngineOption { return func(e *Engine) { e.metrics = m } }

// WithWorkers bounds concurrent pair evaluations per rule.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLanguage selects the language alert messages are rendered in.
func WithLanguage(tag string) EngineOption { return func(e *Engine) { e.printer = NewPrinter(tag) } }

// WithClock overrides the wall clock used for generation timestamps.
func WithClock(now func() time.Time) EngineOption { return func(e *Engine) { e.now = now } }

// WithLocation sets the time zone that decides today's date when a request
// carries no cutoff.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// NewEngine creates an engine with the built-in triggers.
func NewEngine(deps EngineDeps, log logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		deps:     deps,
		resolver: NewResolver(deps.Config),
		registry: DefaultRegistry(),
		printer:  NewPrinter("en"),
		workers:  defaultWorkers,
		now:      func() time.Time { return time.Now().UTC() },
		location: time.UTC,
		log:      log.Module("engine"),
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the trigger registry rules are bound against.
func (e *Engine) Registry() *Registry { return e.registry }

// Resolver returns the configuration resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Evaluate runs every active rule against its eligible subjects. Pair
// failures are counted in the summary and never abort the run. Only a failure
// to load the rule catalog or configuration aborts, returning a summary with
// one error and the cause. A cancelled context yields the partial summary with
// Cancelled set and a nil error.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (out RunSummary, err error) {
	started := e.now()
	cutoff := dateOnly(req.CutoffDate)
	if req.CutoffDate.IsZero() {
		cutoff = conf.Today(started, e.location)
	}
	if req.Origin == "" {
		req.Origin = OriginManual
	}
	summary := RunSummary{
		CutoffDate: cutoff.Format(dateLayout),
		ProgramID:  req.ProgramID,
		DryRun:     req.DryRun,
		Origin:     req.Origin,
		StartedAt:  started,
	}
	log := e.log.With(
		logger.String("origin", string(req.Origin)),
		logger.String("cutoff", summary.CutoffDate),
		logger.Bool("dry_run", req.DryRun))

	result := "ok"
	defer func() {
		elapsed := e.now().Sub(started)
		out.DurationMS = elapsed.Milliseconds()
		e.metrics.ObserveRun(string(req.Origin), result, elapsed)
	}()

	rules, err := e.deps.Rules.ListActiveRules(ctx)
	if err != nil {
		return e.abort(ctx, &summary, &result, log, "failed to load rule catalog", err)
	}
	slices.SortStableFunc(rules, func(a, b entities.Rule) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.Key, b.Key))
	})

	snapshot, err := e.resolver.Snapshot(ctx)
	if err != nil {
		return e.abort(ctx, &summary, &result, log, "failed to load configuration", err)
	}

	run := &evaluationRun{
		engine:   e,
		req:      req,
		cutoff:   cutoff,
		started:  started,
		snapshot: snapshot,
		features: newMemoFeatures(e.deps.Features),
		subjects: make(map[entities.ObjectiveKind][]entities.Subject),
		summary:  &summary,
		log:      log,
	}
	for i := range rules {
		if ctx.Err() != nil {
			break
		}
		run.evaluateRule(ctx, &rules[i])
	}

	if ctx.Err() != nil {
		summary.Cancelled = true
		result = "cancelled"
		log.Warn("evaluation run cancelled",
			logger.Int("rules_executed", summary.RulesExecuted),
			logger.Int("alerts_generated", summary.AlertsGenerated))
		return summary, nil
	}

	log.Info("evaluation run finished",
		logger.Int("rules_executed", summary.RulesExecuted),
		logger.Int("alerts_generated", summary.AlertsGenerated),
		logger.Int("errors", summary.Errors))
	return summary, nil
}

func (e *Engine) abort(ctx context.Context, summary *RunSummary, result *string, log logger.Logger, msg string, cause error) (RunSummary, error) {
	if ctx.Err() != nil {
		summary.Cancelled = true
		*result = "cancelled"
		return *summary, nil
	}
	summary.Errors = 1
	*result = "aborted"
	err := errors.Newf("%s: %w", msg, cause).
		Component("alerting").
		Category(errors.CategoryDatabase).
		Build()
	log.Error("evaluation run aborted", logger.Error(err))
	return *summary, err
}

// evaluationRun holds the state of one Evaluate call.
type evaluationRun struct {
	engine   *Engine
	req      EvaluateRequest
	cutoff   time.Time
	started  time.Time
	snapshot *Snapshot
	features FeatureProvider
	subjects map[entities.ObjectiveKind][]entities.Subject
	summary  *RunSummary
	log      logger.Logger
}

// pairResult is the outcome of one rule and subject evaluation.
type pairResult struct {
	skipped bool
	alert   *entities.Alert
	err     error
}

func (r *evaluationRun) evaluateRule(ctx context.Context, rule *entities.Rule) {
	e := r.engine
	log := r.log.With(logger.String("rule_key", rule.Key))

	trigger, params, err := e.registry.Bind(rule)
	if err != nil {
		r.summary.Errors++
		e.metrics.RuleInvalid(rule.Key)
		log.Warn("skipping invalid rule", logger.Error(err))
		return
	}

	subjects, err := r.subjectsFor(ctx, rule.ObjectiveKind)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.summary.Errors++
		e.metrics.PairError(rule.Key, string(errors.CategoryOf(err)))
		log.Error("failed to resolve subjects", logger.Error(err))
		return
	}
	r.summary.RulesExecuted++

	results := make([]pairResult, len(subjects))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range subjects {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.evaluatePair(ctx, rule, trigger, params, subjects[i])
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		if ctx.Err() != nil {
			return
		}
		res := &results[i]
		switch {
		case res.skipped:
		case res.err != nil:
			r.summary.Errors++
			e.metrics.PairError(rule.Key, string(errors.CategoryOf(res.err)))
			log.Warn("rule evaluation failed for subject",
				logger.String("subject", subjects[i].Key()),
				logger.Error(res.err))
		case res.alert != nil:
			r.record(ctx, rule, res.alert, log)
		}
	}
}

// subjectsFor resolves the population for kind once per run.
func (r *evaluationRun) subjectsFor(ctx context.Context, kind entities.ObjectiveKind) ([]entities.Subject, error) {
	if s, ok := r.subjects[kind]; ok {
		return s, nil
	}
	s, err := r.engine.deps.Subjects.ListSubjects(ctx, kind, r.req.ProgramID)
	if err != nil {
		return nil, transient(err)
	}
	r.subjects[kind] = s
	return s, nil
}

func (r *evaluationRun) evaluatePair(ctx context.Context, rule *entities.Rule, trigger Trigger, params Params, subject entities.Subject) (res pairResult) {
	if ctx.Err() != nil {
		return pairResult{skipped: true}
	}
	defer func() {
		if rec := recover(); rec != nil {
			res = pairResult{err: errors.Newf("trigger %s panicked: %v", rule.Key, rec).
				Component("alerting").
				Category(errors.CategoryGeneric).
				Context("subject", subject.Key()).
				Build()}
		}
	}()

	programID := subject.ProgramID
	effective, err := trigger.ApplyConfig(rule.Key, params, r.snapshot, &programID)
	if err != nil {
		return pairResult{err: err}
	}
	in := EvalInput{
		Rule:    rule,
		Subject: subject,
		Cutoff:  r.cutoff,
		Params:  effective,
		Printer: r.engine.printer,
	}

	features, err := trigger.Fetch(ctx, r.features, in)
	if err != nil {
		if ctx.Err() != nil {
			return pairResult{skipped: true}
		}
		return pairResult{err: transient(err)}
	}
	verdict, err := trigger.Check(in, features)
	if err != nil {
		return pairResult{err: err}
	}
	if !verdict.Triggered {
		return pairResult{}
	}
	return pairResult{alert: r.candidate(rule, subject, verdict)}
}

func (r *evaluationRun) candidate(rule *entities.Rule, subject entities.Subject, verdict Verdict) *entities.Alert {
	programID := subject.ProgramID
	return &entities.Alert{
		RuleID:        rule.ID,
		RuleKey:       rule.Key,
		Message:       verdict.Message,
		Severity:      rule.Severity,
		State:         entities.AlertOpen,
		GeneratedAt:   r.started,
		CutoffDate:    r.cutoff,
		ProgramID:     &programID,
		ActivityID:    copyID(subject.ActivityID),
		ParticipantID: copyID(subject.ParticipantID),
		SubjectKey:    subject.Key(),
	}
}

// record persists or simulates a candidate alert.
func (r *evaluationRun) record(ctx context.Context, rule *entities.Rule, alert *entities.Alert, log logger.Logger) {
	e := r.engine
	if r.req.DryRun {
		r.summary.AlertsGenerated++
		r.summary.Simulated = append(r.summary.Simulated, *alert)
		e.metrics.AlertGenerated(rule.Key, string(rule.Severity), true)
		return
	}

	created, err := e.persist(ctx, alert)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.summary.Errors++
		e.metrics.PairError(rule.Key, string(errors.CategoryOf(err)))
		log.Error("failed to persist alert",
			logger.String("subject", alert.SubjectKey),
			logger.Error(err))
		return
	}
	if !created {
		log.Debug("open alert already exists", logger.String("subject", alert.SubjectKey))
		return
	}
	r.summary.AlertsGenerated++
	e.metrics.AlertGenerated(rule.Key, string(rule.Severity), false)
	e.dispatcher.Dispatch(ctx, alert)
}

// persist inserts alert unless an Open alert already exists for its rule and
// subject. The unique index backs the check against writers outside this
// process.
func (e *Engine) persist(ctx context.Context, alert *entities.Alert) (bool, error) {
	unlock := e.locks.Lock(fmt.Sprintf("%d|%s", alert.RuleID, alert.SubjectKey))
	defer unlock()

	existing, err := e.deps.Alerts.FindOpenAlert(ctx, alert.RuleID, alert.SubjectKey)
	if err != nil {
		return false, transient(err)
	}
	if existing != nil {
		return false, nil
	}
	if err := e.deps.Alerts.InsertAlert(ctx, alert); err != nil {
		if errors.Is(err, repository.ErrDuplicateOpenAlert) {
			return false, nil
		}
		return false, transient(err)
	}
	return true, nil
}

// transient tags uncategorised errors as transient I/O failures.
func transient(err error) error {
	if errors.CategoryOf(err) != errors.CategoryGeneric {
		return err
	}
	return errors.New(err).Component("alerting").Category(errors.CategoryTransientIO).Build()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func copyID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
