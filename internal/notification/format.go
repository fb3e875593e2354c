package notification

import (
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgTitle   = "[%s] Alert %s"
	msgSubject = "Subject %s, cutoff %s"
)

var severityLabels = map[entities.Severity]string{
	entities.SeverityInfo:     "Informativa",
	entities.SeverityHigh:     "Alta",
	entities.SeverityCritical: "Crítica",
}

func init() {
	_ = message.SetString(language.Spanish, msgTitle, "[%s] Alerta %s")
	_ = message.SetString(language.Spanish, msgSubject, "Sujeto %s, fecha de corte %s")
	for sev, es := range severityLabels {
		_ = message.SetString(language.Spanish, string(sev), es)
	}
}

func newPrinter(tag string) *message.Printer {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.English
	}
	return message.NewPrinter(t)
}

func title(p *message.Printer, alert *entities.Alert) string {
	return p.Sprintf(msgTitle, p.Sprintf(string(alert.Severity)), alert.RuleKey)
}

// body is the alert message as generated plus a subject line. The message was
// already rendered in the engine's language when the alert was created.
func body(p *message.Printer, alert *entities.Alert) string {
	return alert.Message + "\n" + p.Sprintf(msgSubject, alert.SubjectKey, alert.CutoffDate.Format("2006-01-02"))
}
