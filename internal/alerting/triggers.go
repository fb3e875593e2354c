package alerting

import (
	"context"
	"fmt"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// DefaultRegistry returns a registry holding the built-in triggers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(consecutiveAbsencesTrigger())
	r.MustRegister(lowAttendanceTrigger())
	r.MustRegister(lowPlanExecutionTrigger())
	r.MustRegister(fieldOutOfRangeTrigger())
	return r
}

func consecutiveAbsencesTrigger() Trigger {
	return Trigger{
		Key:         RuleConsecutiveAbsences,
		Label:       "Consecutive absences",
		Description: "Participant missed at least the threshold number of consecutive sessions of an activity",
		Objective:   entities.ObjectiveParticipant,
		Params: []ParamSpec{
			{Name: ParamAbsenceThreshold, Type: entities.ParamInteger, Required: true, ConfigKey: ConfigAbsenceThreshold, Description: "Consecutive absences that raise an alert"},
		},
		Fetch: func(ctx context.Context, fp FeatureProvider, in EvalInput) (Features, error) {
			participantID, activityID, err := participantRefs(in)
			if err != nil {
				return nil, err
			}
			n, err := fp.ConsecutiveAbsences(ctx, participantID, activityID, in.Cutoff)
			if err != nil {
				return nil, err
			}
			return Features{FeatureAbsences: float64(n)}, nil
		},
		Check: func(in EvalInput, f Features) (Verdict, error) {
			threshold := in.Params.Int(ParamAbsenceThreshold)
			if threshold < 1 {
				return Verdict{}, validationError(in.Rule.Key, "%s must be at least 1", ParamAbsenceThreshold)
			}
			absences, _ := f.Get(FeatureAbsences)
			if int64(absences) < threshold {
				return Verdict{}, nil
			}
			var activityID uint
			if in.Subject.ActivityID != nil {
				activityID = *in.Subject.ActivityID
			}
			return Verdict{
				Triggered: true,
				Message:   in.Printer.Sprintf(msgConsecutiveAbsences, int64(absences), activityID, threshold),
			}, nil
		},
	}
}

func lowAttendanceTrigger() Trigger {
	return Trigger{
		Key:         RuleLowAttendance,
		Label:       "Low attendance",
		Description: "Participant attendance across the program over a trailing window is below the minimum percentage",
		Objective:   entities.ObjectiveParticipant,
		Params: []ParamSpec{
			{Name: ParamMinPercentage, Type: entities.ParamDecimal, Required: true, ConfigKey: ConfigMinAttendance, Description: "Minimum attendance percentage"},
			{Name: ParamWindowDays, Type: entities.ParamInteger, Default: fmt.Sprint(defaultWindowDays), Description: "Trailing window in days, ending at the cutoff date"},
		},
		Fetch: func(ctx context.Context, fp FeatureProvider, in EvalInput) (Features, error) {
			participantID, _, err := participantRefs(in)
			if err != nil {
				return nil, err
			}
			window := in.Params.Int(ParamWindowDays)
			if window < 1 {
				return nil, validationError(in.Rule.Key, "%s must be at least 1", ParamWindowDays)
			}
			from := in.Cutoff.AddDate(0, 0, -int(window)+1)
			pct, err := fp.AttendancePercentage(ctx, participantID, in.Subject.ProgramID, from, in.Cutoff)
			if err != nil {
				return nil, err
			}
			return Features{FeatureAttendance: pct}, nil
		},
		Check: func(in EvalInput, f Features) (Verdict, error) {
			minimum := in.Params.Decimal(ParamMinPercentage)
			pct, ok := f.Get(FeatureAttendance)
			if !ok || pct >= minimum {
				return Verdict{}, nil
			}
			return Verdict{
				Triggered: true,
				Message:   in.Printer.Sprintf(msgLowAttendance, pct, in.Params.Int(ParamWindowDays), minimum),
			}, nil
		},
	}
}

func lowPlanExecutionTrigger() Trigger {
	return Trigger{
		Key:         RuleLowPlanExecution,
		Label:       "Low plan execution",
		Description: "Executed activities for the cutoff month are below the minimum share of planned ones",
		Objective:   entities.ObjectiveProgram,
		Params: []ParamSpec{
			{Name: ParamMinPercentage, Type: entities.ParamDecimal, Required: true, ConfigKey: ConfigMinExecution, Description: "Minimum execution percentage"},
		},
		Fetch: func(ctx context.Context, fp FeatureProvider, in EvalInput) (Features, error) {
			planned, executed, err := fp.PlanVsExecuted(ctx, in.Subject.ProgramID, in.Cutoff.Format(monthLayout))
			if err != nil {
				return nil, err
			}
			return Features{FeaturePlanned: float64(planned), FeatureExecuted: float64(executed)}, nil
		},
		Check: func(in EvalInput, f Features) (Verdict, error) {
			planned, _ := f.Get(FeaturePlanned)
			if planned <= 0 {
				return Verdict{}, nil
			}
			executed, _ := f.Get(FeatureExecuted)
			pct := executed / planned * 100
			minimum := in.Params.Decimal(ParamMinPercentage)
			if pct >= minimum {
				return Verdict{}, nil
			}
			return Verdict{
				Triggered: true,
				Message: in.Printer.Sprintf(msgLowPlanExecution,
					in.Cutoff.Format(monthLayout), pct, int64(executed), int64(planned), minimum),
			}, nil
		},
	}
}

func fieldOutOfRangeTrigger() Trigger {
	return Trigger{
		Key:         RuleFieldOutOfRange,
		Label:       "POA field out of range",
		Description: "A captured POA field value for the activity falls outside the configured range",
		Objective:   entities.ObjectiveActivity,
		Params: []ParamSpec{
			{Name: ParamField, Type: entities.ParamText, Required: true, Description: "POA field key"},
			{Name: ParamMin, Type: entities.ParamDecimal, Required: true, Description: "Lowest accepted value"},
			{Name: ParamMax, Type: entities.ParamDecimal, Required: true, Description: "Highest accepted value"},
			{Name: ParamInstance, Type: entities.ParamInteger, Description: "POA instance; defaults to the program's plan instance"},
		},
		Fetch: func(ctx context.Context, fp FeatureProvider, in EvalInput) (Features, error) {
			var instanceID uint
			switch {
			case in.Params.Has(ParamInstance):
				instance := in.Params.Int(ParamInstance)
				if instance < 1 {
					return nil, validationError(in.Rule.Key, "%s must be at least 1", ParamInstance)
				}
				instanceID = uint(instance)
			case in.Subject.PlanInstanceID != nil:
				instanceID = *in.Subject.PlanInstanceID
			default:
				// No plan instance, nothing captured to compare.
				return Features{}, nil
			}
			v, err := fp.FieldDecimalValue(ctx, instanceID, in.Params.Text(ParamField), nil, in.Subject.ActivityID, nil)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return Features{}, nil
			}
			return Features{FeatureFieldValue: *v}, nil
		},
		Check: func(in EvalInput, f Features) (Verdict, error) {
			lo, hi := in.Params.Decimal(ParamMin), in.Params.Decimal(ParamMax)
			if lo > hi {
				return Verdict{}, validationError(in.Rule.Key, "%s %v is greater than %s %v", ParamMin, lo, ParamMax, hi)
			}
			v, ok := f.Get(FeatureFieldValue)
			if !ok || (v >= lo && v <= hi) {
				return Verdict{}, nil
			}
			return Verdict{
				Triggered: true,
				Message:   in.Printer.Sprintf(msgFieldOutOfRange, in.Params.Text(ParamField), v, lo, hi),
			}, nil
		},
	}
}

func participantRefs(in EvalInput) (participantID, activityID uint, err error) {
	s := in.Subject
	if s.ParticipantID == nil || s.ActivityID == nil {
		return 0, 0, validationError(in.Rule.Key, "participant subject %s is missing participant or activity", s.Key())
	}
	return *s.ParticipantID, *s.ActivityID, nil
}
