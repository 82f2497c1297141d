package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
)

type published struct {
	topic   string
	payload string
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic, string(payload)})
	return nil
}

type fakeJournal struct {
	recs []Record
	err  error
}

func (f *fakeJournal) Save(_ context.Context, rec Record) error {
	f.recs = append(f.recs, rec)
	return f.err
}

type fakeDynamo struct {
	input *dynamodb.PutItemInput
	err   error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.input = in
	return &dynamodb.PutItemOutput{}, f.err
}

func newService(t *testing.T, pub Publisher, opts ...Option) *Service {
	t.Helper()
	cat, err := config.NewCatalog([]config.Sensor{
		{ID: "kitchen"},
		{ID: "room1", Topic: "room1/topic", ControlTopic: "room1/led"},
	})
	require.NoError(t, err)
	return NewService(pub, cat, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand("ledOn")
	require.NoError(t, err)
	assert.Equal(t, LEDOn, c)

	c, err = ParseCommand("ledOff")
	require.NoError(t, err)
	assert.Equal(t, LEDOff, c)

	for _, bad := range []string{"", "LEDON", "ledon", "blink"} {
		_, err := ParseCommand(bad)
		assert.ErrorIs(t, err, ErrUnknownCommand, bad)
	}
}

func TestSendPublishesToControlTopic(t *testing.T) {
	pub := &fakePublisher{}
	j := &fakeJournal{}
	s := newService(t, pub, WithJournal(j))
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	rec, err := s.Send(context.Background(), "kitchen", LEDOn)
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, published{"kitchen/topic", "ledOn"}, pub.sent[0])

	_, err = uuid.Parse(rec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "kitchen", rec.SensorID)
	assert.Equal(t, at.Unix(), rec.SentAt)
	assert.Equal(t, at.Add(RecordTTL).Unix(), rec.ExpiresAt)
	assert.Equal(t, []Record{rec}, j.recs)

	_, err = s.Send(context.Background(), "room1", LEDOff)
	require.NoError(t, err)
	assert.Equal(t, published{"room1/led", "ledOff"}, pub.sent[1])
}

func TestSendRejects(t *testing.T) {
	pub := &fakePublisher{}
	s := newService(t, pub)

	_, err := s.Send(context.Background(), "garage", LEDOn)
	assert.ErrorIs(t, err, ErrUnknownSensor)

	_, err = s.Send(context.Background(), "kitchen", Command("blink"))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	assert.Empty(t, pub.sent)
}

func TestSendPublishFailure(t *testing.T) {
	boom := errors.New("not connected")
	j := &fakeJournal{}
	s := newService(t, &fakePublisher{err: boom}, WithJournal(j))

	_, err := s.Send(context.Background(), "kitchen", LEDOn)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, j.recs)
}

func TestJournalFailureIsNotReturned(t *testing.T) {
	pub := &fakePublisher{}
	s := newService(t, pub, WithJournal(&fakeJournal{err: errors.New("throttled")}))

	rec, err := s.Send(context.Background(), "kitchen", LEDOff)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.RequestID)
	assert.Len(t, pub.sent, 1)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	s := newService(t, &fakePublisher{}, WithMetrics(m))
	ctx := context.Background()

	_, _ = s.Send(ctx, "kitchen", LEDOn)
	_, _ = s.Send(ctx, "kitchen", LEDOn)
	_, _ = s.Send(ctx, "kitchen", Command("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("ledOn", resultSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("invalid", resultRejected)))
}

func TestDynamoJournalSave(t *testing.T) {
	db := &fakeDynamo{}
	j := NewDynamoJournal(db, "sensor-commands")
	rec := Record{RequestID: "abc", SensorID: "kitchen", Topic: "kitchen/topic", Command: LEDOn, SentAt: 100, ExpiresAt: 200}

	require.NoError(t, j.Save(context.Background(), rec))
	require.NotNil(t, db.input)
	assert.Equal(t, "sensor-commands", *db.input.TableName)

	var got Record
	require.NoError(t, attributevalue.UnmarshalMap(db.input.Item, &got))
	assert.Equal(t, rec, got)
	assert.Contains(t, db.input.Item, "expires_at")
}

func TestDynamoJournalError(t *testing.T) {
	j := NewDynamoJournal(&fakeDynamo{err: errors.New("denied")}, "t")
	err := j.Save(context.Background(), Record{RequestID: "x"})
	assert.ErrorContains(t, err, "failed to store command in dynamodb")
}
