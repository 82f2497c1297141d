// log-collector poslouchá logs/# a ukládá logy všech služeb do souborů.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/transport"
)

// Config log collectoru.
type Config struct {
	MQTTBroker   string
	MQTTClientID string
	LogTopic     string
	LogDir       string // v Dockeru namapovaný volume
}

func LoadConfig() Config {
	_ = godotenv.Load()
	return Config{
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("COLLECTOR_CLIENT_ID", "log-collector"),
		LogTopic:     getEnv("LOG_TOPIC", "logs/#"),
		LogDir:       getEnv("LOG_DIR", "/var/log/iot-app"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func main() {
	// Vlastní logy jen na stdout, jinak bychom sbírali sami sebe.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := LoadConfig()
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	sink, err := NewSink(cfg.LogDir)
	if err != nil {
		logger.Error("Nelze vytvořit adresář pro logy", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := transport.New(transport.Options{
		Broker:       cfg.MQTTBroker,
		ClientID:     cfg.MQTTClientID,
		Topics:       []string{cfg.LogTopic},
		ConnectRetry: 5 * time.Second,
		MaxReconnect: 30 * time.Second,
		Buffer:       1024,
	}, logger)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-adapter.Messages():
				if err := sink.Append(msg.Topic, msg.Payload); err != nil {
					logger.Error("Chyba při zápisu do souboru", "topic", msg.Topic, "error", err)
				}
			}
		}
	}()

	if err := adapter.Run(ctx); err != nil {
		logger.Error("MQTT Connection failed", "error", err)
		os.Exit(1)
	}
}
