package ingest

import "github.com/prometheus/client_golang/prometheus"

const (
	resultStored     = "stored"
	resultMalformed  = "malformed"
	resultStoreError = "store_error"
)

// Metrics jsou čítače ingestoru. Nil *Metrics je platný a nic nepočítá.
type Metrics struct {
	messages *prometheus.CounterVec
	drops    prometheus.Counter
}

// NewMetrics zaregistruje čítače ingestoru do reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_ingest_messages_total",
			Help: "Zpracované zprávy podle výsledku (každý pokus o zápis zvlášť).",
		}, []string{"result"}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_ingest_dropped_total",
			Help: "Zprávy zahozené po vyčerpání pokusů o zápis.",
		}),
	}
	reg.MustRegister(m.messages, m.drops)
	return m
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(result).Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.drops.Inc()
}
