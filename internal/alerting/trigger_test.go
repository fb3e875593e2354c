package alerting

import (
	"context"
	"testing"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFetch(context.Context, FeatureProvider, EvalInput) (Features, error) { return Features{}, nil }

func noopCheck(EvalInput, Features) (Verdict, error) { return Verdict{}, nil }

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	tr := Trigger{Key: "X", Objective: entities.ObjectiveProgram, Fetch: noopFetch, Check: noopCheck}
	require.NoError(t, r.Register(tr))
	assert.Error(t, r.Register(tr), "duplicate key")

	assert.Error(t, r.Register(Trigger{Objective: entities.ObjectiveProgram, Fetch: noopFetch, Check: noopCheck}))
	assert.Error(t, r.Register(Trigger{Key: "Y", Objective: "Team", Fetch: noopFetch, Check: noopCheck}))
	assert.Error(t, r.Register(Trigger{Key: "Z", Objective: entities.ObjectiveProgram}))
	assert.Error(t, r.Register(Trigger{
		Key: "W", Objective: entities.ObjectiveProgram, Fetch: noopFetch, Check: noopCheck,
		Params: []ParamSpec{{Name: "P", Type: "Date"}},
	}))

	_, ok := r.Lookup("X")
	assert.True(t, ok)
	assert.Equal(t, []string{"X"}, r.Keys())
	assert.Panics(t, func() { r.MustRegister(tr) })
}

func TestDefaultRegistry_Keys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		RuleLowAttendance,
		RuleFieldOutOfRange,
		RuleConsecutiveAbsences,
		RuleLowPlanExecution,
	}, DefaultRegistry().Keys())
}

func TestRegistry_Bind(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()

	t.Run("fills defaults", func(t *testing.T) {
		t.Parallel()
		rule := &entities.Rule{
			Key: RuleLowAttendance, ObjectiveKind: entities.ObjectiveParticipant,
			Parameters: []entities.RuleParameter{{Name: ParamMinPercentage, Type: entities.ParamDecimal, Value: "75"}},
		}
		_, params, err := reg.Bind(rule)
		require.NoError(t, err)
		assert.Equal(t, int64(defaultWindowDays), params.Int(ParamWindowDays))
		assert.InDelta(t, 75.0, params.Decimal(ParamMinPercentage), 0)
	})

	t.Run("integer accepted for decimal", func(t *testing.T) {
		t.Parallel()
		rule := &entities.Rule{
			Key: RuleLowPlanExecution, ObjectiveKind: entities.ObjectiveProgram,
			Parameters: []entities.RuleParameter{{Name: ParamMinPercentage, Type: entities.ParamInteger, Value: "60"}},
		}
		_, params, err := reg.Bind(rule)
		require.NoError(t, err)
		assert.InDelta(t, 60.0, params.Decimal(ParamMinPercentage), 0)
	})

	t.Run("config-backed parameter may be omitted", func(t *testing.T) {
		t.Parallel()
		rule := &entities.Rule{Key: RuleConsecutiveAbsences, ObjectiveKind: entities.ObjectiveParticipant}
		_, _, err := reg.Bind(rule)
		assert.NoError(t, err)
	})

	failures := []struct {
		name string
		rule entities.Rule
	}{
		{"unknown key", entities.Rule{Key: "NOPE", ObjectiveKind: entities.ObjectiveProgram}},
		{"objective mismatch", entities.Rule{Key: RuleLowPlanExecution, ObjectiveKind: entities.ObjectiveActivity}},
		{"wrong type", entities.Rule{
			Key: RuleConsecutiveAbsences, ObjectiveKind: entities.ObjectiveParticipant,
			Parameters: []entities.RuleParameter{{Name: ParamAbsenceThreshold, Type: entities.ParamDecimal, Value: "2.5"}},
		}},
		{"missing required", entities.Rule{
			Key: RuleFieldOutOfRange, ObjectiveKind: entities.ObjectiveActivity,
			Parameters: []entities.RuleParameter{{Name: ParamField, Type: entities.ParamText, Value: "beneficiarios"}},
		}},
		{"unparseable", entities.Rule{
			Key: RuleConsecutiveAbsences, ObjectiveKind: entities.ObjectiveParticipant,
			Parameters: []entities.RuleParameter{{Name: ParamAbsenceThreshold, Type: entities.ParamInteger, Value: "x"}},
		}},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := reg.Bind(&tt.rule)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()

	tr, ok := DefaultRegistry().Lookup(RuleConsecutiveAbsences)
	require.True(t, ok)
	base := Params{}
	v, err := ParseValue(entities.ParamInteger, "3")
	require.NoError(t, err)
	base[ParamAbsenceThreshold] = v

	snap := NewSnapshot(
		[]entities.ConfigEntry{{Key: ConfigAbsenceThreshold, Value: "4"}},
		[]entities.ConfigOverride{{ProgramID: 7, Key: ConfigAbsenceThreshold, Value: "5"}},
	)

	got, err := tr.ApplyConfig(RuleConsecutiveAbsences, base, snap, uintPtr(7))
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Int(ParamAbsenceThreshold))

	got, err = tr.ApplyConfig(RuleConsecutiveAbsences, base, snap, uintPtr(8))
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Int(ParamAbsenceThreshold))

	assert.Equal(t, int64(3), base.Int(ParamAbsenceThreshold), "rule params are not mutated")

	got, err = tr.ApplyConfig(RuleConsecutiveAbsences, base, NewSnapshot(nil, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Int(ParamAbsenceThreshold))

	_, err = tr.ApplyConfig(RuleConsecutiveAbsences, Params{}, NewSnapshot(nil, nil), nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "required and unresolved")

	bad := NewSnapshot([]entities.ConfigEntry{{Key: ConfigAbsenceThreshold, Value: "lots"}}, nil)
	_, err = tr.ApplyConfig(RuleConsecutiveAbsences, base, bad, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func checkInput(t *testing.T, key string, subject entities.Subject, raw map[string]string) EvalInput {
	t.Helper()
	tr, ok := DefaultRegistry().Lookup(key)
	require.True(t, ok)
	rule := &entities.Rule{Key: key, ObjectiveKind: tr.Objective}
	for _, spec := range tr.Params {
		if v, ok := raw[spec.Name]; ok {
			rule.Parameters = append(rule.Parameters, entities.RuleParameter{Name: spec.Name, Type: spec.Type, Value: v})
		}
	}
	_, params, err := DefaultRegistry().Bind(rule)
	require.NoError(t, err)
	return EvalInput{Rule: rule, Subject: subject, Cutoff: day(2024, 3, 15), Params: params, Printer: NewPrinter("en")}
}

func TestConsecutiveAbsencesCheck(t *testing.T) {
	t.Parallel()

	tr := consecutiveAbsencesTrigger()
	in := checkInput(t, RuleConsecutiveAbsences, participant(1, 1, 100), map[string]string{ParamAbsenceThreshold: "3"})

	v, err := tr.Check(in, Features{FeatureAbsences: 3})
	require.NoError(t, err)
	assert.True(t, v.Triggered, "threshold is inclusive")

	v, err = tr.Check(in, Features{FeatureAbsences: 2})
	require.NoError(t, err)
	assert.False(t, v.Triggered)

	zero := checkInput(t, RuleConsecutiveAbsences, participant(1, 1, 100), map[string]string{ParamAbsenceThreshold: "0"})
	_, err = tr.Check(zero, Features{FeatureAbsences: 1})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestConsecutiveAbsencesFetch_RequiresParticipantRefs(t *testing.T) {
	t.Parallel()

	tr := consecutiveAbsencesTrigger()
	in := checkInput(t, RuleConsecutiveAbsences, programSubject(1), map[string]string{ParamAbsenceThreshold: "3"})
	_, err := tr.Fetch(context.Background(), &fakeFeatures{}, in)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLowAttendance(t *testing.T) {
	t.Parallel()

	tr := lowAttendanceTrigger()
	in := checkInput(t, RuleLowAttendance, participant(1, 1, 100), map[string]string{ParamMinPercentage: "75", ParamWindowDays: "10"})

	v, err := tr.Check(in, Features{FeatureAttendance: 74.9})
	require.NoError(t, err)
	assert.True(t, v.Triggered)
	assert.Equal(t, "Attendance of 74.9% over the last 10 days is below the minimum of 75.0%", v.Message)

	v, err = tr.Check(in, Features{FeatureAttendance: 75})
	require.NoError(t, err)
	assert.False(t, v.Triggered)

	window := checkInput(t, RuleLowAttendance, participant(1, 1, 100), map[string]string{ParamMinPercentage: "75", ParamWindowDays: "0"})
	_, err = tr.Fetch(context.Background(), &fakeFeatures{}, window)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLowPlanExecution(t *testing.T) {
	t.Parallel()

	tr := lowPlanExecutionTrigger()
	in := checkInput(t, RuleLowPlanExecution, programSubject(1), map[string]string{ParamMinPercentage: "60"})

	v, err := tr.Check(in, Features{FeaturePlanned: 10, FeatureExecuted: 5})
	require.NoError(t, err)
	assert.True(t, v.Triggered)
	assert.Equal(t, "Plan execution for 2024-03 is 50.0% (5 of 10), below the minimum of 60.0%", v.Message)

	v, err = tr.Check(in, Features{FeaturePlanned: 10, FeatureExecuted: 6})
	require.NoError(t, err)
	assert.False(t, v.Triggered)

	v, err = tr.Check(in, Features{FeaturePlanned: 0, FeatureExecuted: 0})
	require.NoError(t, err)
	assert.False(t, v.Triggered, "nothing planned never triggers")
}

func TestFieldOutOfRange(t *testing.T) {
	t.Parallel()

	tr := fieldOutOfRangeTrigger()
	activity := entities.Subject{Kind: entities.ObjectiveActivity, ProgramID: 1, ActivityID: uintPtr(10), PlanInstanceID: uintPtr(900)}
	raw := map[string]string{ParamField: "beneficiarios", ParamMin: "10", ParamMax: "20"}
	in := checkInput(t, RuleFieldOutOfRange, activity, raw)

	fp := &fakeFeatures{fields: map[uint]float64{10: 25}}
	f, err := tr.Fetch(context.Background(), fp, in)
	require.NoError(t, err)
	v, err := tr.Check(in, f)
	require.NoError(t, err)
	assert.True(t, v.Triggered)

	f, err = tr.Fetch(context.Background(), &fakeFeatures{fields: map[uint]float64{}}, in)
	require.NoError(t, err)
	v, err = tr.Check(in, f)
	require.NoError(t, err)
	assert.False(t, v.Triggered, "missing value never triggers")

	noPlan := activity
	noPlan.PlanInstanceID = nil
	in = checkInput(t, RuleFieldOutOfRange, noPlan, raw)
	f, err = tr.Fetch(context.Background(), fp, in)
	require.NoError(t, err)
	assert.Empty(t, f)

	inverted := checkInput(t, RuleFieldOutOfRange, activity, map[string]string{ParamField: "x", ParamMin: "5", ParamMax: "1"})
	_, err = tr.Check(inverted, Features{FeatureFieldValue: 3})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	inside := checkInput(t, RuleFieldOutOfRange, activity, raw)
	v, err = tr.Check(inside, Features{FeatureFieldValue: 20})
	require.NoError(t, err)
	assert.False(t, v.Triggered, "range bounds are inclusive")
}

func TestFieldOutOfRange_RejectsNonPositiveInstance(t *testing.T) {
	t.Parallel()

	tr := fieldOutOfRangeTrigger()
	activity := entities.Subject{Kind: entities.ObjectiveActivity, ProgramID: 1, ActivityID: uintPtr(10), PlanInstanceID: uintPtr(900)}
	fp := &fakeFeatures{fields: map[uint]float64{10: 25}}

	for _, instance := range []string{"-1", "0"} {
		in := checkInput(t, RuleFieldOutOfRange, activity,
			map[string]string{ParamField: "beneficiarios", ParamMin: "10", ParamMax: "20", ParamInstance: instance})
		_, err := tr.Fetch(context.Background(), fp, in)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "instance %s", instance)
	}

	in := checkInput(t, RuleFieldOutOfRange, activity,
		map[string]string{ParamField: "beneficiarios", ParamMin: "10", ParamMax: "20", ParamInstance: "901"})
	f, err := tr.Fetch(context.Background(), fp, in)
	require.NoError(t, err)
	assert.Contains(t, f, FeatureFieldValue)
}
