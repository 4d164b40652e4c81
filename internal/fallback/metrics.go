package fallback

import "github.com/prometheus/client_golang/prometheus"

var requestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fcsrv",
		Subsystem: "fallback",
		Name:      "requests_total",
		Help:      "Requests sent to fallback providers by result",
	},
	[]string{"provider", "result"},
)

func init() {
	prometheus.MustRegister(requestsTotal)
}
