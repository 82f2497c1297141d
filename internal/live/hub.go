// Package live rozesílá nově uložená čtení připojeným websocket klientům (dashboard).
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Původ hlídá CORS vrstva API, tady pouštíme všechny.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event je obálka zprávy na websocketu.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub drží aktivní klienty. Mapu klientů vlastní jen goroutina Run, proto bez zámku.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	connected atomic.Int64
}

// NewHub vytvoří hub, klienty obsluhuje až Run.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run vlastní mapu klientů. Blokuje do zrušení contextu, pak všechny odpojí.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.drop(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Add(1)
			h.logger.Info("WebSocket klient připojen", "remote", c.conn.RemoteAddr().String())

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("WebSocket klient odpojen", "remote", c.conn.RemoteAddr().String())
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Pomalý klient, zahodíme ho celého.
					h.logger.Warn("WebSocket klient nestíhá, odpojuji", "remote", c.conn.RemoteAddr().String())
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.connected.Add(-1)
}

// Clients vrací počet připojených klientů.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// ReadingStored je observer ingestoru. Neblokuje: při plné frontě se událost zahodí.
func (h *Hub) ReadingStored(r store.Reading) {
	msg, err := json.Marshal(Event{Type: "reading", Payload: r})
	if err != nil {
		h.logger.Error("Nelze serializovat čtení pro websocket", "error", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("Websocket fronta plná, událost zahozena", "sensor", r.SensorID)
	}
}

// ServeHTTP upgraduje spojení na websocket a zaregistruje klienta.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade už odpověděl klientovi chybou.
		h.logger.Warn("WebSocket upgrade selhal", "error", err)
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
