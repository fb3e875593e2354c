package entities

import "fmt"

// Subject is one member of a rule's objective population. Only the references
// meaningful to Kind are set: Program subjects carry ProgramID, Activity
// subjects add ActivityID, Participant subjects add ActivityID and
// ParticipantID (absences are tracked per activity enrolment).
type Subject struct {
	Kind           ObjectiveKind `json:"kind"`
	ProgramID      uint          `json:"program_id"`
	ActivityID     *uint         `json:"activity_id,omitempty"`
	ParticipantID  *uint         `json:"participant_id,omitempty"`
	PlanInstanceID *uint         `json:"plan_instance_id,omitempty"`
}

// Key is the subject part of the alert dedup key.
func (s Subject) Key() string {
	switch s.Kind {
	case ObjectiveParticipant:
		return fmt.Sprintf("A%d/U%d", deref(s.ActivityID), deref(s.ParticipantID))
	case ObjectiveActivity:
		return fmt.Sprintf("A%d", deref(s.ActivityID))
	default:
		return fmt.Sprintf("P%d", s.ProgramID)
	}
}

func deref(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}
