package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/forms"
	"github.com/xela07ax/donewell-adapter/internal/infra/httpx"
)

type EventService interface {
	RecordDeploy(ctx context.Context, req domain.DeployRequest) (domain.DeployEvent, error)
	LogIncident(ctx context.Context, req domain.IncidentRequest) error
	ValidateContactForm(sub domain.ContactSubmission) domain.ValidationResult
}

// DeployResponse — ответ POST /health/deploy.
type DeployResponse struct {
	Status   string `json:"status"`
	Received bool   `json:"received"`
	DeployID string `json:"deploy_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FormTestResponse — ответ POST /health/form-test.
type FormTestResponse struct {
	Status         string   `json:"status"`
	Validated      bool     `json:"validated"`
	SubmissionPath string   `json:"submission_path"`
	Errors         []string `json:"errors,omitempty"`
}

// IncidentResponse — ответ POST /health/log.
type IncidentResponse struct {
	Status string `json:"status"`
	Logged bool   `json:"logged"`
	Error  string `json:"error,omitempty"`
}

type EventHandler struct {
	service EventService
	logger  *zap.Logger
}

func NewEventHandler(s EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{service: s, logger: logger.Named("event-handler")}
}

// statusFor: ошибка ввода — 400, все остальное — 500.
func statusFor(err error) int {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *EventHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req domain.DeployRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Warn("deploy: bad body", zap.Error(err))
		WriteDeployError(w, statusFor(err), err.Error())
		return
	}

	ev, err := h.service.RecordDeploy(r.Context(), req)
	if err != nil {
		WriteDeployError(w, statusFor(err), err.Error())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, DeployResponse{Status: "ok", Received: true, DeployID: ev.DeployID})
}

func (h *EventHandler) FormTest(w http.ResponseWriter, r *http.Request) {
	var sub domain.ContactSubmission
	if err := decodeBody(r, &sub); err != nil {
		h.logger.Warn("form-test: bad body", zap.Error(err))
		WriteFormTestError(w, statusFor(err), err.Error())
		return
	}

	res := h.service.ValidateContactForm(sub)
	if !res.Valid {
		httpx.WriteJSON(w, http.StatusBadRequest, FormTestResponse{
			Status:         "error",
			SubmissionPath: forms.SubmissionPath,
			Errors:         res.Errors,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, FormTestResponse{
		Status:         "ok",
		Validated:      true,
		SubmissionPath: forms.SubmissionPath,
	})
}

// Incident вызывается за auth-middleware: сюда доходят только запросы с верным секретом.
func (h *EventHandler) Incident(w http.ResponseWriter, r *http.Request) {
	var req domain.IncidentRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Warn("incident: bad body", zap.Error(err))
		DenyIncident(w, statusFor(err), err.Error())
		return
	}

	if err := h.service.LogIncident(r.Context(), req); err != nil {
		DenyIncident(w, statusFor(err), err.Error())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, IncidentResponse{Status: "ok", Logged: true})
}

// Ошибочные ответы в формате конкретного эндпоинта. Ими же пользуются auth-middleware
// и обработчик паники в httpx.Endpoint.

func WriteDeployError(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, DeployResponse{Status: "error", Error: msg})
}

func WriteFormTestError(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, FormTestResponse{
		Status:         "error",
		SubmissionPath: forms.SubmissionPath,
		Errors:         []string{msg},
	})
}

// DenyIncident — ответ в формате /health/log.
func DenyIncident(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, IncidentResponse{Status: "error", Error: msg})
}
