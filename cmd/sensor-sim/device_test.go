package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(hostTemp func() (float64, bool)) *Device {
	d := NewDevice("kitchen", "kitchen/topic", 42, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.hostTemp = hostTemp
	return d
}

func noHost() (float64, bool) { return 0, false }

func TestNextProducesFirmwarePayload(t *testing.T) {
	d := newTestDevice(noHost)

	msg, changed := d.Next()
	require.True(t, changed)

	var p struct {
		Status string `json:"status"`
		Data   struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &p))
	assert.Equal(t, "Connected", p.Status)
	require.NotNil(t, p.Data.Temp)
	require.NotNil(t, p.Data.Humidity)
}

func TestNextSkipsUnchangedMessage(t *testing.T) {
	d := newTestDevice(func() (float64, bool) { return 23.44, true })
	d.noise = func(float64) float64 { return 0 }

	msg, changed := d.Next()
	require.True(t, changed)
	assert.JSONEq(t, `{"status":"Connected","data":{"temp":23.4,"humidity":45}}`, string(msg))

	_, changed = d.Next()
	assert.False(t, changed)

	d.hostTemp = func() (float64, bool) { return 24, true }
	_, changed = d.Next()
	assert.True(t, changed)
}

func TestRandomWalkStaysInRange(t *testing.T) {
	d := newTestDevice(noHost)
	for i := 0; i < 10000; i++ {
		m := d.Measure()
		require.GreaterOrEqual(t, m.Temp, 15.0)
		require.LessOrEqual(t, m.Temp, 35.0)
		require.GreaterOrEqual(t, m.Humidity, 20.0)
		require.LessOrEqual(t, m.Humidity, 90.0)
	}
}

func TestHandleCommand(t *testing.T) {
	d := newTestDevice(noHost)
	assert.False(t, d.LED())

	d.HandleCommand([]byte("ledOn"))
	assert.True(t, d.LED())

	// vlastní telemetrie na stejném topicu stav nemění
	d.HandleCommand([]byte(`{"status":"Connected","data":{"temp":20,"humidity":40}}`))
	assert.True(t, d.LED())

	d.HandleCommand([]byte("ledOff"))
	assert.False(t, d.LED())
}
