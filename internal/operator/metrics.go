package operator

import "github.com/prometheus/client_golang/prometheus"

// reconcileTotal counts Reconcile outcomes by result, the generalization
// of the teacher's per-managed-resource state metrics to this system's
// single reconciled kind.
var reconcileTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "external_postgres_reconciles_total",
		Help: "Total Database reconcile attempts by outcome.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(reconcileTotal)
}
