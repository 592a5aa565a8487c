// Package metrics объявляет prometheus-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "receipt_ledger"

// Metrics набор счётчиков и гистограмм сервиса.
type Metrics struct {
	BillsUploaded    prometheus.Counter
	ReportsGenerated prometheus.Counter
	ReportDuration   prometheus.Histogram
	AuthFailures     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New регистрирует метрики в reg. В тестах передаётся prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BillsUploaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_uploaded_total",
			Help:      "Number of bills stored.",
		}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Number of monthly PDF reports generated.",
		}),
		ReportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time spent building a monthly report.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Failed authentication attempts by operation.",
		}, []string{"op"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
}

// Nop возвращает метрики, зарегистрированные в отдельном реестре, который никто не экспортирует.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
