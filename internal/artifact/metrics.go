package artifact

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fcsrv",
			Subsystem: "artifact",
			Name:      "downloads_total",
			Help:      "Artifact and manifest downloads by result",
		},
		[]string{"result"},
	)

	hashMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fcsrv",
			Subsystem: "artifact",
			Name:      "hash_mismatch_total",
			Help:      "Artifacts whose on-disk digest did not match the manifest",
		},
	)
)

func init() {
	prometheus.MustRegister(downloadsTotal, hashMismatchTotal)
}
