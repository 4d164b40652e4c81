package registry

import "github.com/prometheus/client_golang/prometheus"

var buildsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fcsrv",
		Subsystem: "predictor",
		Name:      "builds_total",
		Help:      "Predictor builds by variant and whether the result is active",
	},
	[]string{"variant", "active"},
)

func init() {
	prometheus.MustRegister(buildsTotal)
}
