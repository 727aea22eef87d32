package domain

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// EventSource — тег источника во всех операционных событиях.
const EventSource = "donewell-health-adapter"

// ValidationError — ошибка клиентского ввода (400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Severity — закрытое перечисление важности инцидента.
type Severity string

const (
	Sev1 Severity = "sev-1"
	Sev2 Severity = "sev-2"
	Sev3 Severity = "sev-3"
)

var severities = []Severity{Sev1, Sev2, Sev3}

// ParseSeverity принимает только значения из перечисления.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range severities {
		if string(sev) == s {
			return sev, nil
		}
	}
	allowed := make([]string, len(severities))
	for i, sev := range severities {
		allowed[i] = string(sev)
	}
	return "", &ValidationError{Message: fmt.Sprintf("Invalid severity. Must be: %s", strings.Join(allowed, ", "))}
}

// Level — уровень лога для строки инцидента.
func (s Severity) Level() zapcore.Level {
	switch s {
	case Sev1:
		return zapcore.ErrorLevel
	case Sev2:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// DeployRequest — тело POST /health/deploy как оно пришло.
type DeployRequest struct {
	SiteID      string         `json:"site_id"`
	DeployID    string         `json:"deploy_id"`
	Environment string         `json:"environment"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// DeployEvent — провалидированное событие деплоя с проставленными дефолтами.
type DeployEvent struct {
	SiteID      string
	DeployID    string
	Environment string
	Timestamp   string
	Metadata    map[string]any
}

// ToEvent проверяет обязательные поля и проставляет дефолты.
func (r DeployRequest) ToEvent(receivedAt time.Time) (DeployEvent, error) {
	if r.SiteID == "" || r.DeployID == "" || r.Environment == "" {
		return DeployEvent{}, &ValidationError{Message: "Missing required fields: site_id, deploy_id, environment"}
	}
	ev := DeployEvent{
		SiteID:      r.SiteID,
		DeployID:    r.DeployID,
		Environment: r.Environment,
		Timestamp:   r.Timestamp,
		Metadata:    r.Metadata,
	}
	if ev.Timestamp == "" {
		ev.Timestamp = FormatTime(receivedAt)
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	return ev, nil
}

// IncidentRequest — тело POST /health/log.
type IncidentRequest struct {
	SiteID    string         `json:"site_id"`
	Severity  string         `json:"severity"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Path      *string        `json:"path,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IncidentLogEntry — провалидированная запись инцидента.
type IncidentLogEntry struct {
	SiteID    string
	Severity  Severity
	Type      string
	Message   string
	Path      *string // nil пишется в лог как null
	Timestamp string
	Metadata  map[string]any
}

// ToEntry проверяет обязательные поля, затем severity.
func (r IncidentRequest) ToEntry(receivedAt time.Time) (IncidentLogEntry, error) {
	if r.SiteID == "" || r.Severity == "" || r.Type == "" || r.Message == "" {
		return IncidentLogEntry{}, &ValidationError{Message: "Missing required fields: site_id, severity, type, message"}
	}
	sev, err := ParseSeverity(r.Severity)
	if err != nil {
		return IncidentLogEntry{}, err
	}
	entry := IncidentLogEntry{
		SiteID:    r.SiteID,
		Severity:  sev,
		Type:      r.Type,
		Message:   r.Message,
		Path:      r.Path,
		Timestamp: r.Timestamp,
		Metadata:  r.Metadata,
	}
	if entry.Path != nil && *entry.Path == "" {
		entry.Path = nil
	}
	if entry.Timestamp == "" {
		entry.Timestamp = FormatTime(receivedAt)
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	return entry, nil
}
