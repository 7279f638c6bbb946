package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry хранит коллекторы приложения
	Registry = prometheus.NewRegistry()

	exchangeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "transitions_total",
			Help:      "Total number of exchange status transitions.",
		},
		[]string{"kind", "status"},
	)

	settlementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "settlement_failures_total",
			Help:      "Total number of failed settlement attempts.",
		},
		[]string{"reason"},
	)

	pointsTransferred = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "points_transferred_total",
			Help:      "Total number of points moved between users by settlements.",
		},
	)

	settlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rewear",
			Subsystem: "exchange",
			Name:      "settlement_duration_seconds",
			Help:      "Duration of settlement transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		exchangeTransitions,
		settlementFailures,
		pointsTransferred,
		settlementDuration,
	)
}

// Handler отдаёт метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition учитывает переход обмена в новый статус
func RecordTransition(kind, status string) {
	exchangeTransitions.WithLabelValues(kind, status).Inc()
}

// RecordSettlementFailure учитывает неудачную попытку расчёта
func RecordSettlementFailure(reason string) {
	settlementFailures.WithLabelValues(reason).Inc()
}

// AddPointsTransferred учитывает переведённые баллы
func AddPointsTransferred(points int64) {
	if points > 0 {
		pointsTransferred.Add(float64(points))
	}
}

// ObserveSettlement фиксирует длительность расчёта
func ObserveSettlement(start time.Time) {
	settlementDuration.Observe(time.Since(start).Seconds())
}
