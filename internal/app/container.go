package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/donewell-adapter/internal/adapter/handler"
	"github.com/xela07ax/donewell-adapter/internal/adapter/server"
	"github.com/xela07ax/donewell-adapter/internal/adapter/service"
	"github.com/xela07ax/donewell-adapter/internal/audit"
	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/infra"
	"github.com/xela07ax/donewell-adapter/internal/infra/auth"
	"github.com/xela07ax/donewell-adapter/internal/repository"
	"github.com/xela07ax/donewell-adapter/internal/repository/postgres"
	"github.com/xela07ax/donewell-adapter/internal/repository/postgrest"
)

// Container связывает сервисы адаптера с инфраструктурой.
type Container struct {
	Config   *infra.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Health   *service.HealthService
	Events   *service.EventService
	Server   *server.AdapterServer

	redis *redis.Client
}

// BuildContainer собирает граф зависимостей. events — поток операционных событий (обычно stdout).
func BuildContainer(ctx context.Context, cfg *infra.Config, logger *zap.Logger, events io.Writer) (*Container, error) {
	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	// 2. Хранилище контента. Нет учетных данных — store остается nil, пробы отказывают сразу
	store, err := newContentStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	if store == nil {
		logger.Warn("content store credentials missing", zap.String("driver", cfg.Store.Driver))
	}

	// 3. Веер событий в Redis (опционально)
	var rdb *redis.Client
	var pub audit.Publisher
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// Канал best effort: стартуем и без него
			logger.Warn("redis unreachable, event signals will be dropped", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		pub = rdb
	}

	// 4. Сервисы
	recorder := audit.NewRecorder(infra.NewEventCore(events), pub, logger)
	healthService := service.NewHealthService(service.HealthConfig{
		Site: domain.SiteIdentity{
			ID:          cfg.Site.ID,
			Name:        cfg.Site.Name,
			Environment: cfg.Site.Environment,
			Version:     cfg.Site.Version,
		},
		Provider:     providerName(cfg.Store.Driver),
		ContentTable: cfg.Store.ContentTable,
		FormsTable:   cfg.Store.FormsTable,
		ProbeTimeout: cfg.Probe.Timeout,
	}, store, metrics, logger)
	eventService := service.NewEventService(recorder, metrics, logger)

	// 5. HTTP
	srv := server.NewAdapterServer(
		logger,
		metrics,
		auth.NewSecretValidator(cfg.Incident.Secret),
		cfg.Incident.Header,
		handler.NewHealthHandler(healthService),
		handler.NewEventHandler(eventService, logger),
	)

	if cfg.Incident.Secret == "" {
		logger.Warn("incident secret not set, /health/log will answer 500")
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Health:   healthService,
		Events:   eventService,
		Server:   srv,
		redis:    rdb,
	}, nil
}

// Close освобождает внешние соединения.
func (c *Container) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// newContentStore возвращает nil без ошибки, если учетные данные не заданы.
func newContentStore(cfg infra.StoreConfig) (repository.ContentStore, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	switch cfg.Driver {
	case infra.StoreDriverPostgres:
		repo, err := postgres.NewContentRepo(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("content store: %w", err)
		}
		return repo, nil
	case infra.StoreDriverPostgREST, "":
		return postgrest.NewClient(cfg.URL, cfg.Key), nil
	default:
		return nil, fmt.Errorf("content store: unknown driver %q", cfg.Driver)
	}
}

func providerName(driver string) string {
	if driver == infra.StoreDriverPostgres {
		return postgres.ProviderName
	}
	return postgrest.ProviderName
}
