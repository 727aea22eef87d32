package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/donewell-adapter/internal/adapter/handler"
	"github.com/xela07ax/donewell-adapter/internal/adapter/service"
	"github.com/xela07ax/donewell-adapter/internal/infra/auth"
	"github.com/xela07ax/donewell-adapter/internal/infra/httpx"
)

// Маршруты адаптера
const (
	RouteHealth   = "/health"
	RouteCMS      = "/health/cms"
	RouteDeploy   = "/health/deploy"
	RouteFormTest = "/health/form-test"
	RouteLog      = "/health/log"
)

type AdapterServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	metrics *service.Metrics

	// Проверка shared secret для /health/log
	verifier     auth.SecretVerifier
	secretHeader string

	healthHandler *handler.HealthHandler // /health, /health/cms
	eventHandler  *handler.EventHandler  // /health/deploy, /health/form-test, /health/log
}

// NewAdapterServer собирает роутер адаптера со всеми зависимостями
func NewAdapterServer(
	logger *zap.Logger,
	metrics *service.Metrics,
	verifier auth.SecretVerifier,
	secretHeader string,
	healthH *handler.HealthHandler,
	eventH *handler.EventHandler,
) *AdapterServer {
	if metrics == nil {
		metrics = service.NewMetrics(nil)
	}
	s := &AdapterServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("adapter-api"),
		metrics:       metrics,
		verifier:      verifier,
		secretHeader:  secretHeader,
		healthHandler: healthH,
		eventHandler:  eventH,
	}

	s.routes()
	return s
}

func (s *AdapterServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RealIP)
	r.Use(httpx.Tracing)
	r.Use(httpx.RequestLogger(s.logger))
	r.Use(s.countRequests)

	// --- 2. Публичные пробы и события ---
	r.Handle(RouteHealth, s.endpoint(http.MethodGet, nil).Func(s.healthHandler.Aggregate))
	r.Handle(RouteCMS, s.endpoint(http.MethodGet, nil).Func(s.healthHandler.Content))
	r.Handle(RouteDeploy, s.endpoint(http.MethodPost, handler.WriteDeployError).Func(s.eventHandler.Deploy))
	r.Handle(RouteFormTest, s.endpoint(http.MethodPost, handler.WriteFormTestError).Func(s.eventHandler.FormTest))

	// --- 3. Защищенный прием инцидентов ---
	// Секрет проверяется внутри контракта эндпоинта: preflight и 405 отвечают без него,
	// а тело не читается, пока секрет не сошелся.
	guard := auth.NewMiddleware(s.verifier, s.secretHeader, handler.DenyIncident, s.logger)
	logEndpoint := httpx.Endpoint{
		Method:       http.MethodPost,
		AllowHeaders: []string{"Content-Type", s.secretHeader},
		Logger:       s.logger,
		OnError:      handler.DenyIncident,
	}
	r.Handle(RouteLog, logEndpoint.Wrap(guard(http.HandlerFunc(s.eventHandler.Incident))))
}

func (s *AdapterServer) endpoint(method string, onError func(http.ResponseWriter, int, string)) httpx.Endpoint {
	return httpx.Endpoint{Method: method, Logger: s.logger, OnError: onError}
}

// countRequests считает ответы по шаблону маршрута, а не по сырому пути.
func (s *AdapterServer) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &httpx.StatusWriter{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(sw.Status)).Inc()
	})
}

// ServeHTTP позволяет использовать AdapterServer как стандартный http.Handler
func (s *AdapterServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
