package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig holds configuration for the WebSocket tick ingest.
type WSConfig struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ticks"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WSIngest connects to a plain-JSON WebSocket tick server and forwards
// decoded ticks to its handler. Reconnects with exponential backoff.
type WSIngest struct {
	cfg     WSConfig
	handler Handler

	// Optional hooks for metrics.
	OnReconnect func()
	OnConnected func(bool)
}

// NewWS creates a WebSocket ingest. Returns an error if the URL is
// unparseable.
func NewWS(cfg WSConfig, handler Handler) (*WSIngest, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &WSIngest{cfg: cfg, handler: handler}, nil
}

// Run streams ticks until ctx is cancelled, reconnecting on disconnect.
func (ing *WSIngest) Run(ctx context.Context) {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := ing.runOnce(ctx)
		if err == nil {
			return // context cancelled cleanly
		}
		log.Printf("[feed] connection lost: %v, reconnecting in %v", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

func (ing *WSIngest) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", ing.cfg.URL)
	if ing.OnConnected != nil {
		ing.OnConnected(true)
		defer ing.OnConnected(false)
	}

	// Close the connection when the context ends so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var tick Tick
		if err := json.Unmarshal(msg, &tick); err != nil {
			log.Printf("[feed] bad tick payload, skipping: %v", err)
			continue
		}
		if tick.Underlying == "" || tick.Spot <= 0 {
			continue
		}
		if tick.TS.IsZero() {
			tick.TS = time.Now().UTC()
		}
		ing.handler(tick)
	}
}
