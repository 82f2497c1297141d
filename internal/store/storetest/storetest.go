// Package storetest ověřuje, že backend splňuje kontrakt store.Store.
// Každý backend ho volá ze svých testů; databázové backendy jen s dostupnou DB.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

// Base je celá sekunda, aby prošla i Mongo (ms) a Postgres (µs).
var Base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// Run spustí všechny kontraktní testy nad store vráceným z open.
// ID senzorů jsou pro každý běh unikátní, sdílená DB tedy nevadí.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("RangeIsInclusiveAndAscending", func(t *testing.T) { rangeIsInclusiveAndAscending(t, open(t)) })
	t.Run("UnknownSensorIsEmpty", func(t *testing.T) { unknownSensorIsEmpty(t, open(t)) })
	t.Run("LatestKeepsAllFields", func(t *testing.T) { latestKeepsAllFields(t, open(t)) })
	t.Run("SensorsAreIsolated", func(t *testing.T) { sensorsAreIsolated(t, open(t)) })
}

func sensorID(name string) string {
	return name + uuid.NewString()[:8]
}

func rangeIsInclusiveAndAscending(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := sensorID("room")

	for i := range 5 {
		require.NoError(t, s.Append(ctx, id, store.Reading{
			ReceiptTime: Base.Add(time.Duration(i) * time.Minute),
			Data:        store.Measurements{Temp: float64(i), Humidity: 40},
		}))
	}

	got, err := s.QueryRange(ctx, id, Base.Add(time.Minute), Base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, id, r.SensorID)
		assert.Equal(t, float64(i+1), r.Data.Temp)
		assert.True(t, Base.Add(time.Duration(i+1)*time.Minute).Equal(r.ReceiptTime), "reading %d at %s", i, r.ReceiptTime)
	}

	got, err = s.QueryRange(ctx, id, Base.Add(90*time.Second), Base.Add(150*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Data.Temp)
}

func unknownSensorIsEmpty(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := sensorID("ghost")

	got, err := s.QueryRange(ctx, id, Base.Add(-time.Hour), Base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)

	latest, err := s.Latest(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func latestKeepsAllFields(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := sensorID("kitchen")
	ok := "Connected"

	require.NoError(t, s.Append(ctx, id, store.Reading{ReceiptTime: Base, Data: store.Measurements{Temp: 19, Humidity: 50}}))
	require.NoError(t, s.Append(ctx, id, store.Reading{
		ReceiptTime: Base.Add(time.Second),
		Status:      &ok,
		Data: store.Measurements{
			Temp:     30,
			Humidity: 70,
			Extra:    map[string]any{"pressure": 1013.0},
		},
		Extra: map[string]any{"fw": "1.2"},
	}))

	latest, err := s.Latest(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.SensorID)
	assert.True(t, Base.Add(time.Second).Equal(latest.ReceiptTime))
	require.NotNil(t, latest.Status)
	assert.Equal(t, "Connected", *latest.Status)
	assert.Equal(t, 30.0, latest.Data.Temp)
	assert.Equal(t, 70.0, latest.Data.Humidity)
	assert.Equal(t, 1013.0, latest.Data.Extra["pressure"])
	assert.Equal(t, "1.2", latest.Extra["fw"])

	// čtení bez status a polí navíc
	got, err := s.QueryRange(ctx, id, Base, Base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Status)
	assert.Empty(t, got[0].Extra)
	assert.Empty(t, got[0].Data.Extra)
}

func sensorsAreIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := sensorID("room"), sensorID("room")

	require.NoError(t, s.Append(ctx, a, store.Reading{ReceiptTime: Base, Data: store.Measurements{Temp: 1}}))
	require.NoError(t, s.Append(ctx, b, store.Reading{ReceiptTime: Base.Add(time.Hour), Data: store.Measurements{Temp: 2}}))

	latest, err := s.Latest(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1.0, latest.Data.Temp)

	got, err := s.QueryRange(ctx, b, Base.Add(-time.Hour), Base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Data.Temp)
}
