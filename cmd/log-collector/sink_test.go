package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceName(t *testing.T) {
	name, err := ServiceName("logs/telemetry-hub")
	require.NoError(t, err)
	assert.Equal(t, "telemetry-hub", name)

	name, err = ServiceName("logs/telemetry-hub/error")
	require.NoError(t, err)
	assert.Equal(t, "telemetry-hub", name)

	for _, bad := range []string{"logs", "logs/", "logs/..", "kitchen/topic", `logs/a\b`} {
		_, err := ServiceName(bad)
		assert.ErrorIs(t, err, errBadTopic, bad)
	}
}

func TestSinkAppendsLines(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink(dir)
	require.NoError(t, err)

	require.NoError(t, s.Append("logs/telemetry-hub", []byte(`{"msg":"a"}`)))
	require.NoError(t, s.Append("logs/telemetry-hub", []byte("{\"msg\":\"b\"}\n")))
	require.NoError(t, s.Append("logs/sensor-sim", []byte(`{"msg":"c"}`)))

	b, err := os.ReadFile(filepath.Join(dir, "telemetry-hub.log"))
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"a\"}\n{\"msg\":\"b\"}\n", string(b))

	b, err = os.ReadFile(filepath.Join(dir, "sensor-sim.log"))
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"c\"}\n", string(b))

	assert.Error(t, s.Append("logs/..", []byte("x")))
}

func TestLoadConfigUsesOwnClientID(t *testing.T) {
	t.Setenv("MQTT_CLIENT_ID", "telemetry-hub")
	assert.Equal(t, "log-collector", LoadConfig().MQTTClientID)

	t.Setenv("COLLECTOR_CLIENT_ID", "collector-2")
	assert.Equal(t, "collector-2", LoadConfig().MQTTClientID)
}
