package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/infra/httpx"
)

// HealthService Описываем, что нам нужно от сервиса
type HealthService interface {
	Aggregate(ctx context.Context) domain.HealthReport
	ContentHealth(ctx context.Context) domain.SubsystemReport
}

type HealthHandler struct {
	service HealthService
}

func NewHealthHandler(s HealthService) *HealthHandler {
	return &HealthHandler{service: s}
}

// Aggregate — GET /health. 503 только когда лежит сам фронтенд, деградация отвечает 200.
func (h *HealthHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	report := h.service.Aggregate(r.Context())
	httpx.WriteJSON(w, report.Checks.HTTPStatus(), report)
}

// Content — GET /health/cms.
func (h *HealthHandler) Content(w http.ResponseWriter, r *http.Request) {
	report := h.service.ContentHealth(r.Context())
	httpx.WriteJSON(w, report.HTTPStatus(), report)
}
