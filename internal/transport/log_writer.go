package transport

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// tokenPublisher je ta část mqtt.Client, kterou writer potřebuje.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// LogWriter implementuje io.Writer. Co se do něj zapíše, odejde do MQTT na logs/<služba>.
type LogWriter struct {
	client tokenPublisher
	topic  string
}

// NewLogWriter publikuje na logs/<serviceName>.
func NewLogWriter(client tokenPublisher, serviceName string) *LogWriter {
	return &LogWriter{
		client: client,
		topic:  fmt.Sprintf("logs/%s", serviceName),
	}
}

// LogWriter vrací writer nad klientem adaptéru.
func (a *Adapter) LogWriter(serviceName string) *LogWriter {
	return NewLogWriter(a.client, serviceName)
}

// Write na token nečeká, logování nesmí brzdit aplikaci. Bez spojení se řádek zahodí,
// stdout ho má i tak.
func (w *LogWriter) Write(p []byte) (int, error) {
	if c, ok := w.client.(interface{ IsConnectionOpen() bool }); ok && !c.IsConnectionOpen() {
		return len(p), nil
	}

	// slog buffer po návratu znovu použije
	payload := make([]byte, len(p))
	copy(payload, p)
	w.client.Publish(w.topic, 0, false, payload)

	return len(p), nil
}
