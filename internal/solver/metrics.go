package solver

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fcsrv",
			Subsystem: "solver",
			Name:      "tasks_total",
			Help:      "Tasks processed by route (local, fallback, none) and outcome",
		},
		[]string{"route", "outcome"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fcsrv",
			Subsystem: "solver",
			Name:      "task_duration_seconds",
			Help:      "Task processing time in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal, taskDuration)
}
