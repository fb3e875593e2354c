package alerting

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/logger"
)

func testLogger() logger.Logger { return logger.Discard() }

func uintPtr(v uint) *uint { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeRules serves a fixed rule list.
type fakeRules struct {
	rules []entities.Rule
	err   error
}

func (f *fakeRules) ListActiveRules(_ context.Context) ([]entities.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []entities.Rule
	for _, r := range f.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeSubjects serves subjects per kind and records the program filter.
type fakeSubjects struct {
	mu       sync.Mutex
	byKind   map[entities.ObjectiveKind][]entities.Subject
	err      error
	calls    int
	programs []*uint
}

func (f *fakeSubjects) ListSubjects(_ context.Context, kind entities.ObjectiveKind, programID *uint) ([]entities.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.programs = append(f.programs, programID)
	if f.err != nil {
		return nil, f.err
	}
	var out []entities.Subject
	for _, s := range f.byKind[kind] {
		if programID == nil || s.ProgramID == *programID {
			out = append(out, s)
		}
	}
	return out, nil
}

func participant(programID, activityID, participantID uint) entities.Subject {
	return entities.Subject{
		Kind:          entities.ObjectiveParticipant,
		ProgramID:     programID,
		ActivityID:    uintPtr(activityID),
		ParticipantID: uintPtr(participantID),
	}
}

func programSubject(programID uint) entities.Subject {
	return entities.Subject{Kind: entities.ObjectiveProgram, ProgramID: programID}
}

// fakeFeatures answers from maps. Errors keyed the same way are returned
// instead of values.
type fakeFeatures struct {
	mu         sync.Mutex
	absences   map[string]int // "participant/activity"
	absErr     map[string]error
	attendance map[uint]float64 // participant
	plan       map[uint][2]int  // program -> planned, executed
	fields     map[uint]float64 // activity
	asOf       []time.Time
	calls      int
}

func absKey(participantID, activityID uint) string {
	return fmt.Sprintf("%d/%d", participantID, activityID)
}

func (f *fakeFeatures) ConsecutiveAbsences(_ context.Context, participantID, activityID uint, asOf time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.asOf = append(f.asOf, asOf)
	key := absKey(participantID, activityID)
	if err := f.absErr[key]; err != nil {
		return 0, err
	}
	return f.absences[key], nil
}

func (f *fakeFeatures) PlanVsExecuted(_ context.Context, programID uint, _ string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p := f.plan[programID]
	return p[0], p[1], nil
}

func (f *fakeFeatures) FieldDecimalValue(_ context.Context, _ uint, _ string, _, activityID, _ *uint) (*float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if activityID == nil {
		return nil, nil
	}
	v, ok := f.fields[*activityID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *fakeFeatures) AttendancePercentage(_ context.Context, participantID, _ uint, _, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if v, ok := f.attendance[participantID]; ok {
		return v, nil
	}
	return 100, nil
}

func (f *fakeFeatures) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAlertStore is an in-memory AlertWriter enforcing one Open alert per
// rule and subject.
type fakeAlertStore struct {
	mu        sync.Mutex
	alerts    []entities.Alert
	nextID    uint
	findErr   error
	insertErr error
}

func (f *fakeAlertStore) FindOpenAlert(_ context.Context, ruleID uint, subjectKey string) (*entities.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.alerts {
		a := f.alerts[i]
		if a.RuleID == ruleID && a.SubjectKey == subjectKey && a.State == entities.AlertOpen {
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, alert *entities.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, a := range f.alerts {
		if a.RuleID == alert.RuleID && a.SubjectKey == alert.SubjectKey && a.State == entities.AlertOpen {
			return repository.ErrDuplicateOpenAlert
		}
	}
	f.nextID++
	alert.ID = f.nextID
	alert.State = entities.AlertOpen
	alert.Version = fmt.Sprintf("v%d", f.nextID)
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeAlertStore) snapshot() []entities.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.alerts)
}

// fakeConfig is an in-memory ConfigSource.
type fakeConfig struct {
	entries   []entities.ConfigEntry
	overrides []entities.ConfigOverride
	err       error
}

func (f *fakeConfig) GetEntry(_ context.Context, key string) (*entities.ConfigEntry, error) {
	for i := range f.entries {
		if f.entries[i].Key == key {
			return &f.entries[i], nil
		}
	}
	return nil, repository.ErrConfigNotFound
}

func (f *fakeConfig) GetOverride(_ context.Context, programID uint, key string) (*entities.ConfigOverride, error) {
	for i := range f.overrides {
		if f.overrides[i].ProgramID == programID && f.overrides[i].Key == key {
			return &f.overrides[i], nil
		}
	}
	return nil, repository.ErrConfigNotFound
}

func (f *fakeConfig) LoadAll(_ context.Context) ([]entities.ConfigEntry, []entities.ConfigOverride, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.entries, f.overrides, nil
}

// recordingNotifier captures delivered alerts.
type recordingNotifier struct {
	mu     sync.Mutex
	name   string
	alerts []entities.Alert
	err    error
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(_ context.Context, alert *entities.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *alert)
	return n.err
}

func (n *recordingNotifier) received() []entities.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.alerts)
}

func absenceRule(id uint, threshold string) entities.Rule {
	return entities.Rule{
		ID:            id,
		Key:           RuleConsecutiveAbsences,
		Name:          "Consecutive absences",
		Severity:      entities.SeverityHigh,
		ObjectiveKind: entities.ObjectiveParticipant,
		Active:        true,
		Priority:      10,
		Version:       1,
		Parameters: []entities.RuleParameter{
			{Name: ParamAbsenceThreshold, Type: entities.ParamInteger, Value: threshold},
		},
	}
}

func planRule(id uint, minimum string) entities.Rule {
	return entities.Rule{
		ID:            id,
		Key:           RuleLowPlanExecution,
		Name:          "Low plan execution",
		Severity:      entities.SeverityCritical,
		ObjectiveKind: entities.ObjectiveProgram,
		Active:        true,
		Priority:      30,
		Version:       1,
		Parameters: []entities.RuleParameter{
			{Name: ParamMinPercentage, Type: entities.ParamDecimal, Value: minimum},
		},
	}
}

// engineFixture wires an engine over fakes.
type engineFixture struct {
	rules    *fakeRules
	subjects *fakeSubjects
	features *fakeFeatures
	alerts   *fakeAlertStore
	config   *fakeConfig
}

func newFixture(rules ...entities.Rule) *engineFixture {
	return &engineFixture{
		rules:    &fakeRules{rules: rules},
		subjects: &fakeSubjects{byKind: map[entities.ObjectiveKind][]entities.Subject{}},
		features: &fakeFeatures{
			absences:   map[string]int{},
			absErr:     map[string]error{},
			attendance: map[uint]float64{},
			plan:       map[uint][2]int{},
			fields:     map[uint]float64{},
		},
		alerts: &fakeAlertStore{},
		config: &fakeConfig{},
	}
}

func (f *engineFixture) engine(opts ...EngineOption) *Engine {
	return NewEngine(EngineDeps{
		Rules:    f.rules,
		Subjects: f.subjects,
		Features: f.features,
		Alerts:   f.alerts,
		Config:   f.config,
	}, testLogger(), opts...)
}
