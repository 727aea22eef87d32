package domain

import (
	"net/http"
	"time"
)

// TimeLayout — формат времени во всех ответах и событиях (ISO-8601, миллисекунды, UTC).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime приводит время к формату ответов.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Status — агрегированный статус системы.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error" // frontend лежит; сейчас недостижим, но таксономия его держит
)

// CheckState — результат отдельной проверки.
type CheckState string

const (
	CheckOK    CheckState = "ok"
	CheckError CheckState = "error"
)

// CheckFrom переводит результат пробы в значение проверки.
func CheckFrom(ok bool) CheckState {
	if ok {
		return CheckOK
	}
	return CheckError
}

type Checks struct {
	Frontend CheckState `json:"frontend"`
	Content  CheckState `json:"content"`
	Forms    CheckState `json:"forms"`
}

// Status сворачивает проверки в трехзначный статус.
// Порядок: frontend error -> error; все ok -> ok; иначе degraded.
func (c Checks) Status() Status {
	switch {
	case c.Frontend != CheckOK:
		return StatusError
	case c.Content == CheckOK && c.Forms == CheckOK:
		return StatusOK
	default:
		return StatusDegraded
	}
}

// HTTPStatus — 503 только при жестком отказе frontend, degraded отдается как 200.
func (c Checks) HTTPStatus() int {
	if c.Frontend != CheckOK {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// HealthReport — ответ агрегированного health. Не мутируется после создания.
type HealthReport struct {
	SiteID      string `json:"site_id"`
	SiteName    string `json:"site_name"`
	Environment string `json:"environment"`
	Status      Status `json:"status"`
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
	Checks      Checks `json:"checks"`
}

// SiteIdentity — то, как сайт представляется мониторингу.
type SiteIdentity struct {
	ID          string
	Name        string
	Environment string
	Version     string
}

// NewHealthReport строит отчет; Status всегда вычисляется из Checks.
func NewHealthReport(site SiteIdentity, checks Checks, now time.Time) HealthReport {
	return HealthReport{
		SiteID:      site.ID,
		SiteName:    site.Name,
		Environment: site.Environment,
		Status:      checks.Status(),
		Timestamp:   FormatTime(now),
		Version:     site.Version,
		Checks:      checks,
	}
}

// SubsystemReport — диагностический отчет по одному хранилищу с замером задержки.
type SubsystemReport struct {
	Status       CheckState `json:"status"`
	ProviderName string     `json:"provider_name"`
	LatencyMs    int64      `json:"latency_ms"`
	CheckedAt    string     `json:"checked_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// HTTPStatus — любой отказ подсистемы отдается как 503.
func (r SubsystemReport) HTTPStatus() int {
	if r.Status != CheckOK {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
