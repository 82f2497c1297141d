// Package ingest převádí surové MQTT zprávy na uložená čtení.
// Jediný zapisovatel do úložiště.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

var (
	// ErrMalformed: zprávu nejde dekódovat nebo chybí povinná pole. Zahazuje se.
	ErrMalformed = errors.New("malformed telemetry message")

	// ErrStoreUnavailable obaluje chybu úložiště. Handle ji sám neopakuje.
	ErrStoreUnavailable = errors.New("reading store unavailable")
)

// Observer dostane každé úspěšně uložené čtení (živý feed na websocketu).
// Nesmí blokovat, volá se ze smyčky ingestoru.
type Observer interface {
	ReadingStored(r store.Reading)
}

// envelope je očekávaný tvar zprávy: {"status": "...", "data": {"temp": 21.5, "humidity": 40}}.
// Pointery rozliší chybějící pole od nuly.
type envelope struct {
	Status *string `json:"status"`
	Data   *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"data"`
}

// Handler je jediný zapisovatel do úložiště. Handle je bezpečné volat souběžně,
// pořadí ale drží jen Run.
type Handler struct {
	store     store.Store
	logger    *slog.Logger
	metrics   *Metrics
	observers []Observer
	clock     *receiptClock

	maxRetries int
	backoff    time.Duration
}

// Option nastavuje Handler.
type Option func(*Handler)

// WithObserver přidá posluchače uložených čtení.
func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observers = append(h.observers, o) }
}

// WithMetrics zapne Prometheus čítače.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithClock přepíše zdroj času (testy).
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.clock = &receiptClock{now: now} }
}

// WithRetry nastaví chování Run při nedostupném úložišti.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(h *Handler) {
		h.maxRetries = maxRetries
		h.backoff = backoff
	}
}

// NewHandler vytvoří handler s výchozím retry (3 pokusy, 200 ms).
func NewHandler(s store.Store, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:      s,
		logger:     logger,
		clock:      &receiptClock{now: time.Now},
		maxRetries: 3,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SensorID vrací část topicu před prvním '/', případně celý topic.
func SensorID(topic string) string {
	id, _, _ := strings.Cut(topic, "/")
	return id
}

// Handle zpracuje jednu zprávu: identifikace senzoru, dekódování, čas příjmu, zápis.
func (h *Handler) Handle(ctx context.Context, topic string, payload []byte) error {
	sensorID := SensorID(topic)
	if sensorID == "" {
		h.metrics.observe(resultMalformed)
		return fmt.Errorf("%w: topic %q has no sensor id", ErrMalformed, topic)
	}

	r, err := decode(sensorID, payload)
	if err != nil {
		h.metrics.observe(resultMalformed)
		return err
	}
	r.ReceiptTime = h.clock.Now()

	if err := h.store.Append(ctx, sensorID, r); err != nil {
		h.metrics.observe(resultStoreError)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	h.metrics.observe(resultStored)

	for _, o := range h.observers {
		o.ReadingStored(r)
	}
	return nil
}

func decode(sensorID string, payload []byte) (store.Reading, error) {
	// Nejdřív obecně, kvůli polím navíc. Pole a skaláry tu neprojdou.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return store.Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return store.Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Data == nil {
		return store.Reading{}, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if env.Data.Temp == nil || env.Data.Humidity == nil {
		return store.Reading{}, fmt.Errorf("%w: data.temp and data.humidity are required", ErrMalformed)
	}

	r := store.Reading{
		SensorID: sensorID,
		Status:   env.Status,
		Data: store.Measurements{
			Temp:     *env.Data.Temp,
			Humidity: *env.Data.Humidity,
		},
	}

	var err error
	if r.Extra, err = extraFields(fields, "status", "data"); err != nil {
		return store.Reading{}, err
	}

	// data je po dekódování envelope jistě objekt
	var data map[string]json.RawMessage
	if err := json.Unmarshal(fields["data"], &data); err != nil {
		return store.Reading{}, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	if r.Data.Extra, err = extraFields(data, "temp", "humidity"); err != nil {
		return store.Reading{}, err
	}
	return r, nil
}

// extraFields vrátí pole mimo known jako obecné hodnoty, nil když žádná nejsou.
func extraFields(fields map[string]json.RawMessage, known ...string) (map[string]any, error) {
	var extra map[string]any
	for k, raw := range fields {
		if slices.Contains(known, k) {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrMalformed, k, err)
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra, nil
}

// receiptClock dává neklesající časy v UTC, i když systémové hodiny skočí zpět (NTP).
// Pořadí zápisu tak odpovídá pořadí časů příjmu.
type receiptClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *receiptClock) Now() time.Time {
	t := c.now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
