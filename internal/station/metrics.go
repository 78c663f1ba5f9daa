package station

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	envelopesBuilt prometheus.Counter
	imports        *prometheus.CounterVec
	recordsPruned  prometheus.Counter
}

// NewMetrics registers the station counters on reg. Passing nil registers on
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		envelopesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medirelay",
			Subsystem: "exchange",
			Name:      "envelopes_built_total",
			Help:      "Envelopes built for outbound transfer.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medirelay",
			Subsystem: "exchange",
			Name:      "envelope_imports_total",
			Help:      "Inbound envelope verifications by outcome.",
		}, []string{"outcome"}),
		recordsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medirelay",
			Subsystem: "exchange",
			Name:      "replay_records_pruned_total",
			Help:      "Replay ledger records removed by pruning.",
		}),
	}
	reg.MustRegister(m.envelopesBuilt, m.imports, m.recordsPruned)
	return m
}

func (m *Metrics) built() {
	if m != nil {
		m.envelopesBuilt.Inc()
	}
}

func (m *Metrics) imported(outcome string) {
	if m != nil {
		m.imports.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) pruned(n int) {
	if m != nil {
		m.recordsPruned.Add(float64(n))
	}
}
