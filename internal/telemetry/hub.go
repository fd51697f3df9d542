// Package telemetry broadcasts per-cycle state signals (latency, tier,
// skip, resolution) to websocket observers so external UI can display them.
package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"toonloop/internal/logger"
	"toonloop/internal/loop"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fan-outs cycle samples to connected clients. PublishCycle never
// blocks the frame loop: when the broadcast buffer is full the sample is
// dropped and counted.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	dropped    uint64
	logger     logger.Logger
	mu         sync.RWMutex
	once       sync.Once
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run owns the client set. Call once, on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Telemetry", "client connected", map[string]interface{}{
				"total": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Telemetry", "client disconnected", map[string]interface{}{
				"total": total,
			})

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishCycle queues one sample for broadcast without blocking.
func (h *Hub) PublishCycle(s loop.Sample) {
	payload, err := json.Marshal(s)
	if err != nil {
		h.logger.Error("Telemetry", err, nil)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		atomic.AddUint64(&h.dropped, 1)
	}
}

// Dropped reports how many samples were discarded because no consumer kept
// up.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// Handler upgrades HTTP requests to websocket observers.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("Telemetry", err, nil)
			return
		}

		h.register <- conn

		// Drain (and discard) client reads to detect disconnects.
		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// Shutdown stops the run loop and closes every client.
func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
