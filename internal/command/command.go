// Package command posílá příkazy pro LED na řídicí topic senzoru.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownSensor  = errors.New("unknown sensor")
)

// Command je holý řetězec, který firmware zařízení porovnává 1:1.
type Command string

const (
	LEDOn  Command = "ledOn"
	LEDOff Command = "ledOff"
)

// Valid hlásí, zda firmware příkaz zná.
func (c Command) Valid() bool {
	return c == LEDOn || c == LEDOff
}

// ParseCommand převede text z API na Command, jiné hodnoty vrací jako ErrUnknownCommand.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return c, nil
}

// Publisher je odchozí strana MQTT adaptéru.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Record je záznam o odeslaném příkazu (tvar položky v DynamoDB).
type Record struct {
	RequestID string  `json:"request_id" dynamodbav:"request_id"`
	SensorID  string  `json:"sensor_id" dynamodbav:"sensor_id"`
	Topic     string  `json:"topic" dynamodbav:"topic"`
	Command   Command `json:"command" dynamodbav:"command"`
	SentAt    int64   `json:"sent_at" dynamodbav:"sent_at"`
	// ExpiresAt je unix čas pro TTL atribut tabulky.
	ExpiresAt int64 `json:"expires_at" dynamodbav:"expires_at"`
}

// RecordTTL určuje, jak dlouho si žurnál záznam drží.
const RecordTTL = 30 * 24 * time.Hour

// Service posílá příkazy na control topic senzoru a zapisuje je do deníku.
type Service struct {
	pub     Publisher
	catalog *config.Catalog
	journal Journal
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option nastavuje Service.
type Option func(*Service)

// WithJournal nahradí výchozí NopJournal.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithMetrics zapne Prometheus čítače.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService vytvoří službu nad publisherem (transport.Adapter) a katalogem senzorů.
func NewService(pub Publisher, catalog *config.Catalog, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		pub:     pub,
		catalog: catalog,
		journal: NopJournal{},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send publikuje příkaz na řídicí topic senzoru. Doručení na zařízení se nepotvrzuje.
// Chyba žurnálu se jen zaloguje, příkaz už odešel.
func (s *Service) Send(ctx context.Context, sensorID string, cmd Command) (Record, error) {
	if !cmd.Valid() {
		s.metrics.observe(cmd, resultRejected)
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownCommand, string(cmd))
	}

	sensor, ok := s.catalog.Lookup(sensorID)
	if !ok {
		s.metrics.observe(cmd, resultRejected)
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownSensor, sensorID)
	}

	if err := s.pub.Publish(ctx, sensor.ControlTopic, []byte(cmd)); err != nil {
		s.metrics.observe(cmd, resultPublishError)
		return Record{}, fmt.Errorf("send %s to %s: %w", cmd, sensorID, err)
	}
	s.metrics.observe(cmd, resultSent)

	now := s.now()
	rec := Record{
		RequestID: uuid.NewString(),
		SensorID:  sensorID,
		Topic:     sensor.ControlTopic,
		Command:   cmd,
		SentAt:    now.Unix(),
		ExpiresAt: now.Add(RecordTTL).Unix(),
	}

	if err := s.journal.Save(ctx, rec); err != nil {
		s.logger.Error("Nepodařilo se uložit příkaz do žurnálu", "request_id", rec.RequestID, "error", err)
	}

	s.logger.Info("Příkaz odeslán", "sensor", sensorID, "command", cmd, "topic", sensor.ControlTopic, "request_id", rec.RequestID)
	return rec, nil
}
