package alerting

import (
	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// DefaultRules returns the built-in rules seeded on first start. Seeding only
// creates missing keys, so operator edits survive restarts.
func DefaultRules() []entities.Rule {
	return []entities.Rule{
		{
			Key:           RuleConsecutiveAbsences,
			Name:          "Inasistencia consecutiva",
			Description:   "El participante acumula inasistencias consecutivas en una actividad",
			Severity:      entities.SeverityHigh,
			ObjectiveKind: entities.ObjectiveParticipant,
			Active:        true,
			Priority:      10,
			Parameters: []entities.RuleParameter{
				{Name: ParamAbsenceThreshold, Type: entities.ParamInteger, Value: "3"},
			},
		},
		{
			Key:           RuleLowAttendance,
			Name:          "Asistencia baja",
			Description:   "La asistencia del participante en el programa está por debajo del mínimo",
			Severity:      entities.SeverityInfo,
			ObjectiveKind: entities.ObjectiveParticipant,
			Active:        true,
			Priority:      20,
			Parameters: []entities.RuleParameter{
				{Name: ParamMinPercentage, Type: entities.ParamDecimal, Value: "75"},
				{Name: ParamWindowDays, Type: entities.ParamInteger, Value: "30"},
			},
		},
		{
			Key:           RuleLowPlanExecution,
			Name:          "Ejecución del plan baja",
			Description:   "El programa ejecutó menos actividades de las planificadas para el mes",
			Severity:      entities.SeverityCritical,
			ObjectiveKind: entities.ObjectiveProgram,
			Active:        true,
			Priority:      30,
			Parameters: []entities.RuleParameter{
				{Name: ParamMinPercentage, Type: entities.ParamDecimal, Value: "60"},
			},
		},
		{
			Key:           RuleFieldOutOfRange,
			Name:          "Campo POA fuera de rango",
			Description:   "Un campo numérico del POA está fuera del rango esperado",
			Severity:      entities.SeverityHigh,
			ObjectiveKind: entities.ObjectiveActivity,
			// Inactive until an operator sets the field and range.
			Active:   false,
			Priority: 40,
			Parameters: []entities.RuleParameter{
				{Name: ParamField, Type: entities.ParamText, Value: "beneficiarios"},
				{Name: ParamMin, Type: entities.ParamDecimal, Value: "0"},
				{Name: ParamMax, Type: entities.ParamDecimal, Value: "1000"},
			},
		},
	}
}

// DefaultConfig returns the global configuration entries seeded on first
// start.
func DefaultConfig() []CatalogConfigEntry {
	return []CatalogConfigEntry{
		{Key: ConfigAbsenceThreshold, Value: "3", Description: "Inasistencias consecutivas que generan una alerta"},
		{Key: ConfigMinAttendance, Value: "75", Description: "Porcentaje mínimo de asistencia"},
		{Key: ConfigMinExecution, Value: "60", Description: "Porcentaje mínimo de ejecución del plan"},
	}
}

// DefaultCatalog bundles DefaultRules and DefaultConfig.
func DefaultCatalog() *Catalog {
	return &Catalog{Rules: DefaultRules(), Config: DefaultConfig()}
}
