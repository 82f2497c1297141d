// sensor-sim emuluje firmware senzorových desek: měří, posílá telemetrii a poslouchá příkazy pro LED.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := LoadConfig()

	catalog, err := config.LoadCatalog(cfg.SensorsFile)
	if err != nil {
		logger.Error("Nelze načíst katalog senzorů", "error", err)
		os.Exit(1)
	}

	var devices []*Device
	for i, id := range cfg.Sensors {
		s, ok := catalog.Lookup(id)
		if !ok {
			logger.Error("Senzor není v katalogu", "sensor", id)
			os.Exit(1)
		}
		d := NewDevice(s.ID, s.Topic, uint64(time.Now().UnixNano())+uint64(i), logger)
		devices = append(devices, d)
	}

	logger.Info("Startuji simulátor senzorů", "sensors", cfg.Sensors, "interval", cfg.Interval)

	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// Po reconnectu se odběr obnovuje, session je čistá.
		for _, d := range devices {
			sensor, _ := catalog.Lookup(d.ID)
			token := c.Subscribe(sensor.ControlTopic, 0, func(_ mqtt.Client, m mqtt.Message) {
				d.HandleCommand(m.Payload())
			})
			if token.Wait() && token.Error() != nil {
				logger.Error("Subscribe selhal", "topic", sensor.ControlTopic, "error", token.Error())
			}
		}
		logger.Info("Připojeno k MQTT", "broker", cfg.MQTTBroker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("Selhalo připojení k MQTT", "error", token.Error())
		os.Exit(1) // Bez MQTT nemá smysl běžet
	}
	defer client.Disconnect(250)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	publish := func() {
		for _, d := range devices {
			msg, changed := d.Next()
			if !changed {
				logger.Debug("Beze změny", "sensor", d.ID)
				continue
			}
			token := client.Publish(d.Topic, 0, false, msg)
			token.Wait()
			if token.Error() != nil {
				logger.Error("Chyba při publikaci do MQTT", "topic", d.Topic, "error", token.Error())
				continue
			}
			logger.Info("Měření odesláno", "topic", d.Topic, "payload", string(msg), "led", d.LED())
		}
	}

	// První měření hned, ne až po prvním tiku
	publish()

	for {
		select {
		case <-sigChan:
			logger.Info("Přijat signál ukončení, vypínám...")
			return
		case <-ticker.C:
			publish()
		}
	}
}
