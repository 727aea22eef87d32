package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/probe"
	"github.com/xela07ax/donewell-adapter/internal/repository"
)

// Имена проверок для метрик и логов
const (
	checkContent = "content"
	checkForms   = "forms"
	checkCMS     = "cms"
)

// ErrMsgStoreNotConfigured — ответ диагностики, когда учетные данные хранилища не заданы.
const ErrMsgStoreNotConfigured = "CMS configuration missing"

// HealthConfig — все, что health-сервису нужно из конфигурации.
type HealthConfig struct {
	Site         domain.SiteIdentity
	Provider     string // имя провайдера для отчета, когда store не настроен
	ContentTable string
	FormsTable   string
	ProbeTimeout time.Duration
}

type HealthService struct {
	cfg     HealthConfig
	store   repository.ContentStore // nil — учетные данные не заданы, все пробы отказывают сразу (fail-closed)
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewHealthService(cfg HealthConfig, store repository.ContentStore, metrics *Metrics, logger *zap.Logger) *HealthService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &HealthService{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		logger:  logger.Named("health-service"),
		now:     time.Now,
	}
}

// Aggregate отвечает на вопрос «здорова ли система целиком».
// Две пробы идут параллельно, у каждой свой бюджет: медленный контент не съедает время форм.
func (s *HealthService) Aggregate(ctx context.Context) domain.HealthReport {
	// Обработчик выполняется — значит, рантайм жив
	checks := domain.Checks{
		Frontend: domain.CheckOK,
		Content:  domain.CheckError,
		Forms:    domain.CheckError,
	}

	if s.store == nil {
		s.logger.Warn("store credentials missing, content and forms checks fail closed")
		return domain.NewHealthReport(s.cfg.Site, checks, s.now())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		checks.Content = s.boundedProbe(ctx, checkContent, s.cfg.ContentTable)
	}()
	go func() {
		defer wg.Done()
		checks.Forms = s.boundedProbe(ctx, checkForms, s.cfg.FormsTable)
	}()
	wg.Wait()

	report := domain.NewHealthReport(s.cfg.Site, checks, s.now())
	if report.Status != domain.StatusOK {
		s.logger.Warn("aggregate health degraded",
			zap.String("status", string(report.Status)),
			zap.String("content", string(checks.Content)),
			zap.String("forms", string(checks.Forms)))
	}
	return report
}

func (s *HealthService) boundedProbe(ctx context.Context, check, table string) domain.CheckState {
	start := time.Now()
	res := probe.Bounded(ctx, s.cfg.ProbeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.PeekOne(ctx, table)
	})

	ok := res.Kind == probe.Completed && repository.IsAvailable(res.Err)
	outcome := "ok"
	switch {
	case res.Kind == probe.TimedOut:
		outcome = "timeout"
	case !ok:
		outcome = "error"
	}
	s.metrics.ProbeDuration.WithLabelValues(check, outcome).Observe(time.Since(start).Seconds())

	if !ok {
		s.logger.Warn("probe failed",
			zap.String("check", check),
			zap.String("table", table),
			zap.String("outcome", outcome),
			zap.Error(res.Err))
	}
	return domain.CheckFrom(ok)
}

// ContentHealth — диагностика хранилища контента с замером задержки.
// Таймаута нет: это диагностическая проба, а не агрегат. Задержка проставляется всегда.
func (s *HealthService) ContentHealth(ctx context.Context) (report domain.SubsystemReport) {
	if s.store == nil {
		return domain.SubsystemReport{
			Status:       domain.CheckError,
			ProviderName: s.cfg.Provider,
			LatencyMs:    0,
			CheckedAt:    domain.FormatTime(s.now()),
			ErrorMessage: ErrMsgStoreNotConfigured,
		}
	}

	provider := s.store.Provider()
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			report = s.contentFailure(provider, start, fmt.Sprintf("%v", p))
		}
	}()

	err := s.store.PeekOne(ctx, s.cfg.ContentTable)
	if !repository.IsAvailable(err) {
		return s.contentFailure(provider, start, err.Error())
	}

	latency := elapsedMs(start)
	s.metrics.ProbeDuration.WithLabelValues(checkCMS, "ok").Observe(time.Since(start).Seconds())
	return domain.SubsystemReport{
		Status:       domain.CheckOK,
		ProviderName: provider,
		LatencyMs:    latency,
		CheckedAt:    domain.FormatTime(s.now()),
	}
}

func (s *HealthService) contentFailure(provider string, start time.Time, msg string) domain.SubsystemReport {
	latency := elapsedMs(start)
	s.metrics.ProbeDuration.WithLabelValues(checkCMS, "error").Observe(time.Since(start).Seconds())
	s.logger.Warn("content store probe failed",
		zap.String("provider", provider),
		zap.Int64("latency_ms", latency),
		zap.String("error", msg))

	return domain.SubsystemReport{
		Status:       domain.CheckError,
		ProviderName: provider,
		LatencyMs:    latency,
		CheckedAt:    domain.FormatTime(s.now()),
		ErrorMessage: msg,
	}
}

func elapsedMs(start time.Time) int64 {
	return max(0, time.Since(start).Milliseconds())
}
