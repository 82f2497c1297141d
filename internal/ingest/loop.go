package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/transport"
)

// Run je hlavní smyčka zpracování. Jediný konzument fronty, zprávy zpracovává postupně.
// Končí se zrušením contextu nebo zavřením kanálu.
func (h *Handler) Run(ctx context.Context, messages <-chan transport.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			h.process(ctx, msg)
		}
	}
}

func (h *Handler) process(ctx context.Context, msg transport.Message) {
	for attempt := 0; ; attempt++ {
		err := h.Handle(ctx, msg.Topic, msg.Payload)
		switch {
		case err == nil:
			h.logger.Debug("Zpráva uložena", "topic", msg.Topic)
			return

		case errors.Is(err, ErrMalformed):
			// Jednu zprávu zahodíme, službu neukončujeme.
			h.logger.Warn("Zpráva odmítnuta", "topic", msg.Topic, "důvod", err)
			return

		case attempt >= h.maxRetries:
			h.metrics.dropped()
			h.logger.Error("Zpráva zahozena, úložiště nedostupné",
				"topic", msg.Topic, "attempts", attempt+1, "error", err)
			return
		}

		// Exponenciální backoff (200ms, 400ms, 800ms ...)
		wait := time.Duration(1<<uint(attempt)) * h.backoff
		h.logger.Warn("Zápis selhal, zkusím znovu", "topic", msg.Topic, "attempt", attempt+1, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
