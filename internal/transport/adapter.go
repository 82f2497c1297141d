// Package transport drží jediné spojení na MQTT broker.
// Přijaté zprávy posílá do omezené fronty (kanálu), obsah zpráv neparsuje.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrNotConnected = errors.New("mqtt client is not connected")
	ErrPublish      = errors.New("mqtt publish failed")
)

// Message je surová zpráva z brokera, jak přišla.
type Message struct {
	Topic   string
	Payload []byte
}

// Options jsou parametry spojení na broker.
type Options struct {
	Broker   string
	ClientID string

	// Topics jsou telemetrické topicy, přihlašují se znovu po každém (re)connectu.
	Topics []string
	QoS    byte

	ConnectRetry time.Duration // interval opakování prvního připojení
	MaxReconnect time.Duration // strop exponenciálního backoffu při výpadku
	Buffer       int           // kapacita fronty
}

// Adapter vlastní MQTT klienta. Přijaté zprávy čte konzument z Messages.
type Adapter struct {
	client   mqtt.Client
	opts     Options
	logger   *slog.Logger
	messages chan Message

	done     chan struct{}
	stopOnce sync.Once
}

// New připraví klienta, připojuje se až Run.
func New(opts Options, logger *slog.Logger) *Adapter {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	a := newAdapter(opts, logger)

	o := mqtt.NewClientOptions().AddBroker(opts.Broker).SetClientID(opts.ClientID)
	o.SetCleanSession(true)
	o.SetOrderMatters(true) // jedna zpráva po druhé, pořadí příjmu = pořadí zápisu
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(opts.ConnectRetry)
	o.SetMaxReconnectInterval(opts.MaxReconnect)
	o.SetOnConnectHandler(a.onConnect)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Spojení s MQTT ztraceno, obnovuji", "broker", opts.Broker, "error", err)
	})
	o.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("Znovu se připojuji k MQTT", "broker", opts.Broker)
	})

	a.client = mqtt.NewClient(o)
	return a
}

func newAdapter(opts Options, logger *slog.Logger) *Adapter {
	return &Adapter{
		opts:     opts,
		logger:   logger,
		messages: make(chan Message, opts.Buffer),
		done:     make(chan struct{}),
	}
}

// Messages je výstup pro ingestor. Kanál se nikdy nezavírá, konec řídí context.
func (a *Adapter) Messages() <-chan Message {
	return a.messages
}

// onConnect běží po každém úspěšném připojení, i po reconnectu (čistá session = nové subscribe).
func (a *Adapter) onConnect(c mqtt.Client) {
	a.logger.Info("Připojeno k MQTT", "broker", a.opts.Broker)
	if len(a.opts.Topics) == 0 {
		return
	}

	filters := make(map[string]byte, len(a.opts.Topics))
	for _, t := range a.opts.Topics {
		filters[t] = a.opts.QoS
	}

	token := c.SubscribeMultiple(filters, func(_ mqtt.Client, m mqtt.Message) {
		a.deliver(m.Topic(), m.Payload())
	})
	if token.Wait() && token.Error() != nil {
		// Spojení je nejspíš znovu pryč, další onConnect to zkusí znovu.
		a.logger.Error("Subscribe selhal", "topics", a.opts.Topics, "error", token.Error())
		return
	}
	a.logger.Info("Poslouchám na topicích", "topics", a.opts.Topics)
}

// deliver blokuje, dokud ve frontě není místo (backpressure na paho router).
// Po zastavení adaptéru zprávy zahazuje, telemetrie je at-most-once.
func (a *Adapter) deliver(topic string, payload []byte) {
	// paho může buffer payloadu recyklovat
	p := make([]byte, len(payload))
	copy(p, payload)

	msg := Message{Topic: topic, Payload: p}
	select {
	case a.messages <- msg:
	case <-a.done:
	}
}

// Run se připojí (s neomezeným opakováním) a blokuje až do zrušení contextu.
func (a *Adapter) Run(ctx context.Context) error {
	token := a.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			a.stop()
			return fmt.Errorf("mqtt connect to %s: %w", a.opts.Broker, err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	a.stop()
	a.logger.Info("Odpojeno od MQTT")
	return nil
}

func (a *Adapter) stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.client.Disconnect(250)
	})
}

// Connected hlásí, zda je spojení na broker právě otevřené (/health).
func (a *Adapter) Connected() bool {
	return a.client.IsConnectionOpen()
}

// Publish odešle payload. Při QoS 0 je to fire-and-forget (token se dokončí po zápisu do socketu),
// při QoS >= 1 čekáme na potvrzení brokera, nejdéle do konce contextu.
func (a *Adapter) Publish(ctx context.Context, topic string, payload []byte) error {
	if !a.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := a.client.Publish(topic, a.opts.QoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPublish, topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
