package alerting

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Alert message formats. The English text is the catalog key.
const (
	msgConsecutiveAbsences = "%d consecutive absences in activity %d (threshold %d)"
	msgLowAttendance       = "Attendance of %.1f%% over the last %d days is below the minimum of %.1f%%"
	msgLowPlanExecution    = "Plan execution for %s is %.1f%% (%d of %d), below the minimum of %.1f%%"
	msgFieldOutOfRange     = "Field %s value %.2f is outside the range [%.2f, %.2f]"
)

func init() {
	for key, es := range map[string]string{
		msgConsecutiveAbsences: "%d inasistencias consecutivas en la actividad %d (umbral %d)",
		msgLowAttendance:       "La asistencia de %.1f%% en los últimos %d días está por debajo del mínimo de %.1f%%",
		msgLowPlanExecution:    "La ejecución del plan de %s es %.1f%% (%d de %d), por debajo del mínimo de %.1f%%",
		msgFieldOutOfRange:     "El campo %s con valor %.2f está fuera del rango [%.2f, %.2f]",
	} {
		_ = message.SetString(language.Spanish, key, es)
	}
}

// NewPrinter returns a message printer for a BCP 47 tag, falling back to
// English when the tag does not parse.
func NewPrinter(tag string) *message.Printer {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.English
	}
	return message.NewPrinter(t)
}
