// Package alerting evaluates the rule catalog against program data and
// manages the lifecycle of the alerts it raises.
package alerting

// Built-in rule keys. Each has a trigger registered in DefaultRegistry.
const (
	RuleConsecutiveAbsences = "INASISTENCIA_CONSECUTIVA"
	RuleLowAttendance       = "ASISTENCIA_BAJA"
	RuleLowPlanExecution    = "PLAN_EJECUCION_BAJA"
	RuleFieldOutOfRange     = "CAMPO_POA_FUERA_DE_RANGO"
)

// Rule parameter names understood by the built-in triggers.
const (
	ParamAbsenceThreshold = "UMBRAL_AUSENCIAS"
	ParamMinPercentage    = "PORCENTAJE_MINIMO"
	ParamWindowDays       = "DIAS_VENTANA"
	ParamField            = "CAMPO"
	ParamMin              = "MINIMO"
	ParamMax              = "MAXIMO"
	ParamInstance         = "INSTANCIA"
)

// Configuration keys that, when set globally or per program, take precedence
// over the matching rule parameter.
const (
	ConfigAbsenceThreshold = "UMBRAL_AUSENCIAS"
	ConfigMinAttendance    = "PORCENTAJE_MINIMO_ASISTENCIA"
	ConfigMinExecution     = "PORCENTAJE_MINIMO_EJECUCION"
)

// Feature names produced by trigger fetchers.
const (
	FeatureAbsences   = "consecutive_absences"
	FeatureAttendance = "attendance_percentage"
	FeaturePlanned    = "planned"
	FeatureExecuted   = "executed"
	FeatureFieldValue = "field_value"
)

// RunOrigin labels what started an evaluation run.
type RunOrigin string

const (
	OriginScheduled RunOrigin = "scheduled"
	OriginManual    RunOrigin = "manual"
	OriginCLI       RunOrigin = "cli"
)

const (
	defaultWindowDays = 30
	defaultWorkers    = 4
	dateLayout        = "2006-01-02"
	monthLayout       = "2006-01"
)
