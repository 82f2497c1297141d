package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config simulátoru, čte se z prostředí (.env).
type Config struct {
	MQTTBroker   string
	MQTTClientID string

	// Senzory z katalogu, které simulujeme (čárkami oddělené ID)
	Sensors     []string
	SensorsFile string

	// Interval měření, firmware měří každých 5 s
	Interval time.Duration
}

func LoadConfig() Config {
	_ = godotenv.Load()

	interval, err := time.ParseDuration(getEnv("SIM_INTERVAL", "5s"))
	if err != nil || interval <= 0 {
		interval = 5 * time.Second
	}

	var sensors []string
	for _, id := range strings.Split(getEnv("SIM_SENSORS", "room1,room2,kitchen"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			sensors = append(sensors, id)
		}
	}

	return Config{
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("SIM_CLIENT_ID", "sensor-sim"),
		Sensors:      sensors,
		SensorsFile:  getEnv("SENSORS_FILE", "sensors.yaml"),
		Interval:     interval,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
