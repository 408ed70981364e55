package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "qih_"

var jobsCompletedCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "jobs_completed_total",
		Help: "Number of jobs completed, by solver class",
	},
	[]string{"solver_class"},
)

var qpuTimeCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "qpu_time_milliseconds_total",
		Help: "Total primary solver time consumed, in milliseconds",
	},
)

var readsCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "reads_total",
		Help: "Total solver reads/samples taken",
	},
)

var jobDurationHist = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    metricsPrefix + "job_duration_seconds",
		Help:    "Wall time from job start to completion",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	},
)
