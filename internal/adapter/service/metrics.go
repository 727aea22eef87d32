package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: запросы по маршрутам и кодам ответа
	RequestsTotal *prometheus.CounterVec

	// Latency: длительность проб хранилища (check=content|forms|cms, outcome=ok|error|timeout)
	ProbeDuration *prometheus.HistogramVec

	// Events: принятые deploy/incident события
	EventsTotal *prometheus.CounterVec

	// Forms: результаты синтетической валидации
	FormValidations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "donewell_http_requests_total",
			Help: "Total number of handled health adapter requests.",
		}, []string{"route", "code"}),

		ProbeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donewell_probe_duration_seconds",
			Help:    "Histogram of content store probe latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"check", "outcome"}),

		EventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "donewell_events_total",
			Help: "Total number of recorded operational events.",
		}, []string{"kind", "level"}),

		FormValidations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "donewell_form_validations_total",
			Help: "Synthetic contact form validations by result.",
		}, []string{"result"}),
	}
}
