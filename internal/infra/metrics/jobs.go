package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsRequeuedTotal, jobsPending) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingestion_jobs_processed_total",
		Help: "Total number of ingestion jobs processed, labeled by terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobsRequeuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ingestion_jobs_requeued_total",
		Help: "Total number of jobs requeued after a content validation failure.",
	},
)

var jobsPending = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ingestion_jobs_pending",
		Help: "Number of jobs currently waiting in the pending queue.",
	},
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRequeued() { jobsRequeuedTotal.Inc() }

func SetPendingJobs(n int) { jobsPending.Set(float64(n)) }
