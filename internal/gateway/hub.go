// Package gateway delivers Greeks update batches and risk alerts to
// connected WebSocket clients. It is the engine's notification channel; REST
// routing lives in the embedding application, not here.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"risk-systemv1/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The embedding application enforces origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub manages WebSocket clients keyed by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// HandleWS upgrades an HTTP request to WebSocket. The user is identified by
// the "user" query parameter; a client with no user receives every batch.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		userID: r.URL.Query().Get("user"),
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected for user %q (%d total)", client.userID, count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient drops a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run consumes update batches and alert events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, updates <-chan model.GreeksBatch, alerts <-chan model.RiskViolation) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-updates:
			if !ok {
				return
			}
			h.BroadcastGreeks(batch)
		case v, ok := <-alerts:
			if !ok {
				return
			}
			h.BroadcastAlert(v)
		}
	}
}

// BroadcastGreeks sends a batch to clients subscribed to its user.
func (h *Hub) BroadcastGreeks(batch model.GreeksBatch) {
	envelope, _ := json.Marshal(map[string]interface{}{
		"type":    "greeks",
		"user_id": batch.UserID,
		"updates": batch.Updates,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	h.send(batch.UserID, envelope)
}

// BroadcastAlert sends a risk violation to clients subscribed to its user.
func (h *Hub) BroadcastAlert(v model.RiskViolation) {
	envelope, _ := json.Marshal(map[string]interface{}{
		"type":      "violation",
		"user_id":   v.UserID,
		"violation": v,
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	h.send(v.UserID, envelope)
}

func (h *Hub) send(userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.userID != "" && c.userID != userID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Slow client: drop rather than block the broadcast.
		}
	}
}
