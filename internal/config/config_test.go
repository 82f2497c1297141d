package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("INGEST_RETRY_BACKOFF", "nesmysl")
	t.Setenv("MQTT_MAX_RECONNECT", "10s")

	cfg := Load()

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, byte(1), cfg.MQTTQoS)
	assert.Equal(t, 200*time.Millisecond, cfg.IngestRetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.MQTTMaxReconnect)
	assert.Equal(t, "mongo", cfg.StoreBackend)
	assert.Equal(t, "Mqtt-project", cfg.MongoDatabase)
}

func TestDerivedSettings(t *testing.T) {
	cfg := Config{CORSOrigins: "http://localhost:5173, https://dash.example.com,", LogLevel: "debug"}
	assert.Equal(t, []string{"http://localhost:5173", "https://dash.example.com"}, cfg.AllowedOrigins())
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	cfg.LogLevel = "hlasitě"
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadCatalogFallsBackToDefaults(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"room1", "room2", "kitchen"}, c.IDs())
	assert.Equal(t, []string{"room1/topic", "room2/topic", "kitchen/topic"}, c.Topics())

	kitchen, ok := c.Lookup("kitchen")
	require.True(t, ok)
	assert.Equal(t, "kitchen/topic", kitchen.ControlTopic)
	assert.InDelta(t, 40.7128, kitchen.Latitude, 1e-9)
}

func TestLoadCatalogFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yaml")
	yaml := `
sensors:
  - id: garage
    lat: 50.08
    lon: 14.42
  - id: cellar
    topic: cellar/env
    control_topic: cellar/cmd
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	garage, ok := c.Lookup("garage")
	require.True(t, ok)
	assert.Equal(t, "garage/topic", garage.Topic)
	assert.InDelta(t, 14.42, garage.Longitude, 1e-9)

	cellar, _ := c.Lookup("cellar")
	assert.Equal(t, "cellar/cmd", cellar.ControlTopic)

	_, ok = c.Lookup("room1")
	assert.False(t, ok)
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Sensor{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)

	_, err = NewCatalog([]Sensor{{ID: ""}})
	assert.Error(t, err)
}

func TestNewCatalogRejectsForeignTopic(t *testing.T) {
	_, err := NewCatalog([]Sensor{{ID: "cellar", Topic: "house/cellar"}})
	assert.ErrorContains(t, err, `must start with "cellar/"`)

	_, err = NewCatalog([]Sensor{{ID: "cellar", Topic: "cellar"}})
	assert.NoError(t, err)
}
