package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastsStoredReading(t *testing.T) {
	h, srv := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	status := "ok"
	h.ReadingStored(store.Reading{
		SensorID:    "kitchen",
		ReceiptTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:      &status,
		Data:        store.Measurements{Temp: 22.5, Humidity: 48},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type    string        `json:"type"`
		Payload store.Reading `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "reading", ev.Type)
	assert.Equal(t, "kitchen", ev.Payload.SensorID)
	assert.Equal(t, 22.5, ev.Payload.Data.Temp)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	h, srv := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReadingStoredNeverBlocks(t *testing.T) {
	// Hub neběží, fronta se zaplní a další události se musí zahodit.
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			h.ReadingStored(store.Reading{SensorID: "room1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadingStored blocked")
	}
	assert.Len(t, h.broadcast, cap(h.broadcast))
}
