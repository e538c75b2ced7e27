package httpapi

import (
	"errors"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wafflehacks/external-postgres/internal/dbconn"
)

var managedDatabasesDesc = prometheus.NewDesc(
	"external_postgres_managed_databases",
	"Number of databases currently registered with the connection manager.",
	nil, nil,
)

// managedDatabasesCollector reports the live number of managed databases
// (registry entries other than the administrative default database) on
// every /metrics scrape, rather than a point-in-time snapshot taken at
// startup.
type managedDatabasesCollector struct {
	conns *dbconn.Manager
}

func (c *managedDatabasesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- managedDatabasesDesc
}

func (c *managedDatabasesCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(managedDatabasesDesc, prometheus.GaugeValue, float64(len(c.conns.Names())))
}

// registerManagedDatabasesGauge registers conns' collector against the
// default registry promhttp.Handler serves. Repeated registration (e.g.
// one per test-constructed Server in the same process) is tolerated: the
// first registration wins and later ones are silently skipped, since only
// one Server is ever built per real process.
func registerManagedDatabasesGauge(conns *dbconn.Manager, log logr.Logger) {
	if err := prometheus.Register(&managedDatabasesCollector{conns: conns}); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			log.Error(err, "failed to register managed-database gauge")
		}
	}
}
