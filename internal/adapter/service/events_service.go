package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/forms"
)

// EventRecorder — куда уходят принятые события (структурированный лог + веер).
type EventRecorder interface {
	RecordDeploy(ctx context.Context, ev domain.DeployEvent) error
	RecordIncident(ctx context.Context, e domain.IncidentLogEntry) error
}

// EventService принимает fire-and-forget события от пайплайна деплоя и клиентских error boundary.
type EventService struct {
	recorder EventRecorder
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewEventService(recorder EventRecorder, metrics *Metrics, logger *zap.Logger) *EventService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &EventService{
		recorder: recorder,
		metrics:  metrics,
		logger:   logger.Named("event-service"),
		now:      time.Now,
	}
}

// RecordDeploy валидирует событие и пишет его. Невалидное событие в лог не попадает.
func (s *EventService) RecordDeploy(ctx context.Context, req domain.DeployRequest) (domain.DeployEvent, error) {
	ev, err := req.ToEvent(s.now())
	if err != nil {
		return domain.DeployEvent{}, err
	}

	if err := s.recorder.RecordDeploy(ctx, ev); err != nil {
		s.logger.Error("failed to record deploy event",
			zap.String("deploy_id", ev.DeployID),
			zap.Error(err))
		return domain.DeployEvent{}, err
	}

	s.metrics.EventsTotal.WithLabelValues("deploy", "info").Inc()
	return ev, nil
}

// LogIncident вызывается только после успешной проверки секрета.
func (s *EventService) LogIncident(ctx context.Context, req domain.IncidentRequest) error {
	entry, err := req.ToEntry(s.now())
	if err != nil {
		return err
	}

	if err := s.recorder.RecordIncident(ctx, entry); err != nil {
		s.logger.Error("failed to record incident",
			zap.String("site_id", entry.SiteID),
			zap.String("severity", string(entry.Severity)),
			zap.Error(err))
		return err
	}

	s.metrics.EventsTotal.WithLabelValues("incident", entry.Severity.Level().String()).Inc()
	return nil
}

// ValidateContactForm гоняет боевую валидацию формы, ничего не сохраняя.
func (s *EventService) ValidateContactForm(sub domain.ContactSubmission) domain.ValidationResult {
	res := forms.Validate(sub)
	result := "valid"
	if !res.Valid {
		result = "invalid"
	}
	s.metrics.FormValidations.WithLabelValues(result).Inc()
	return res
}
