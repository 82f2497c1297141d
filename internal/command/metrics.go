package command

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSent         = "sent"
	resultRejected     = "rejected"
	resultPublishError = "publish_error"
)

// Metrics: nil je platná hodnota (bez metrik).
type Metrics struct {
	commands *prometheus.CounterVec
}

// NewMetrics zaregistruje čítač příkazů do reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_commands_total",
			Help: "Příkazy pro senzory podle typu a výsledku.",
		}, []string{"command", "result"}),
	}
	reg.MustRegister(m.commands)
	return m
}

func (m *Metrics) observe(cmd Command, result string) {
	if m == nil {
		return
	}
	label := string(cmd)
	if !cmd.Valid() {
		label = "invalid" // neplatné vstupy pod jedním labelem
	}
	m.commands.WithLabelValues(label, result).Inc()
}
