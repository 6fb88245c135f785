package http

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	usageLogged     *prometheus.CounterVec
	usageDuplicates prometheus.Counter
	serviceRaces    prometheus.Counter
	snapshots       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		usageLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiusage",
			Name:      "usage_events_total",
			Help:      "Usage events accepted, by service.",
		}, []string{"service"}),
		usageDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aiusage",
			Name:      "usage_duplicates_total",
			Help:      "Usage posts dropped as Idempotency-Key replays.",
		}),
		serviceRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aiusage",
			Name:      "service_create_races_total",
			Help:      "Service creations lost to a concurrent writer.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aiusage",
			Name:      "cognitive_snapshots_total",
			Help:      "Cognitive health snapshots computed on request.",
		}),
	}
	for _, c := range []prometheus.Collector{m.usageLogged, m.usageDuplicates, m.serviceRaces, m.snapshots} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
