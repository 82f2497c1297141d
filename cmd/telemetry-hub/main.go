// telemetry-hub přijímá telemetrii senzorů z MQTT, ukládá ji a vystavuje HTTP API pro dashboard.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/hub"
)

func main() {
	cfg := config.Load()

	// Do MQTT se loguje až od sestavení hubu, do té doby jen stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	// Context se zruší při SIGINT (Ctrl+C) nebo SIGTERM (docker stop).
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := hub.New(ctx, cfg, logger, hub.WithLogMirror("telemetry-hub"))
	if err != nil {
		// Bez úložiště nemá smysl běžet, Docker kontejner restartuje.
		logger.Error("Kritická chyba: nelze sestavit hub", "error", err)
		os.Exit(1)
	}
	defer h.Close()

	logger = h.Logger()
	slog.SetDefault(logger)
	logger.Info("Spouštím Telemetry Hub", "broker", cfg.MQTTBroker, "backend", cfg.StoreBackend, "port", cfg.HTTPPort)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server spadl", "error", err)
			stop()
		}
	}()

	if err := h.Run(ctx); err != nil {
		logger.Error("MQTT transport skončil chybou", "error", err)
	}

	logger.Info("Ukončuji službu...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server se neukončil čistě", "error", err)
	}
}
