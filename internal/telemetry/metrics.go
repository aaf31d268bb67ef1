package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantit_stages_total",
		Help: "Total stages finished, by kind and status",
	}, []string{"kind", "status"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantit_stage_duration_seconds",
		Help:    "Stage execution duration",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"kind"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantit_runs_total",
		Help: "Total runs finished, by status",
	}, []string{"status"})

	statusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantit_status_updates_total",
		Help: "Status updates sent to the supervisor, by backend and result",
	}, []string{"backend", "result"})

	storeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantit_store_requests_total",
		Help: "Remote store requests, by backend, operation and result",
	}, []string{"backend", "op", "result"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage учитывает завершённую стадию.
func ObserveStage(kind, status string, d time.Duration) {
	stagesTotal.WithLabelValues(kind, status).Inc()
	stageDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveRun учитывает завершённый run.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveStatusUpdate учитывает отправку статуса супервизору.
func ObserveStatusUpdate(backend string, err error) {
	statusUpdatesTotal.WithLabelValues(backend, result(err)).Inc()
}

// ObserveStoreRequest учитывает запрос к удалённому хранилищу.
func ObserveStoreRequest(backend, op string, err error) {
	storeRequestsTotal.WithLabelValues(backend, op, result(err)).Inc()
}
