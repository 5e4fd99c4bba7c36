package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/backgammon-server/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A full moveBatch fits comfortably.
	maxMessageSize = 4096

	sendBuffer = 256
)

var (
	ErrMalformedFrame = errors.New("malformed message")
	ErrReservedIntent = errors.New("intent cannot be sent by clients")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from other origins.
		return true
	},
}

// Frame is the wire envelope in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Dispatcher receives decoded intents. game/service.GameService satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, in service.Intent) error
}

// Client is one WebSocket connection.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string
	ctx        context.Context
	dispatcher Dispatcher
}

// Hub tracks connections and delivers outbound events to them. It implements
// service.Publisher.
type Hub struct {
	// Registered clients by connection id. Owned by Run.
	clients map[string]*Client

	outbound   chan service.Outbound
	register   chan *Client
	unregister chan *Client

	done      chan struct{}
	connected atomic.Int64
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		outbound:   make(chan service.Outbound, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It closes every connection and returns when
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				h.unregisterClient(client)
			}
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case out := <-h.outbound:
			h.deliver(out)
		}
	}
}

// Publish queues an outbound event. Events are delivered in the order they
// are published. After Run has returned it drops the event.
func (h *Hub) Publish(out service.Outbound) {
	select {
	case h.outbound <- out:
	case <-h.done:
	}
}

// Connected reports the number of open connections.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// ServeWS upgrades the request and pumps intents from the connection into d.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, d Dispatcher) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		id:         uuid.NewString(),
		ctx:        context.WithoutCancel(r.Context()),
		dispatcher: d,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	h.connected.Add(1)
	log.Printf("[HUB] conn=%s registered (total: %d)", client.id, len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)
	close(client.send)
	h.connected.Add(-1)
	log.Printf("[HUB] conn=%s unregistered (remaining: %d)", client.id, len(h.clients))
}

func (h *Hub) deliver(out service.Outbound) {
	data, err := encodeFrame(string(out.Event), out.Payload)
	if err != nil {
		log.Printf("[HUB] failed to marshal %s: %v", out.Event, err)
		return
	}

	if out.Broadcast {
		for _, client := range h.clients {
			h.sendTo(client, data)
		}
		return
	}
	for _, id := range out.ConnIDs {
		if client, ok := h.clients[id]; ok {
			h.sendTo(client, data)
		}
	}
}

func (h *Hub) sendTo(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Slow consumer; its pumps will notice the closed channel.
		h.unregisterClient(client)
	}
}

func encodeFrame(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: kind, Data: raw})
}

// DecodeIntent parses an inbound frame into an intent for connID.
func DecodeIntent(connID string, data []byte) (service.Intent, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
		return service.Intent{}, ErrMalformedFrame
	}

	var in service.Intent
	if len(f.Data) > 0 && string(f.Data) != "null" {
		if err := json.Unmarshal(f.Data, &in); err != nil {
			return service.Intent{}, ErrMalformedFrame
		}
	}
	in.Kind = service.IntentKind(f.Type)
	in.ConnID = connID

	if in.Kind == service.IntentDisconnect {
		return service.Intent{}, ErrReservedIntent
	}
	return in, nil
}

// readPump pumps intents from the WebSocket connection to the dispatcher. A
// closed socket becomes a disconnect intent.
func (c *Client) readPump() {
	defer func() {
		if err := c.dispatcher.Handle(c.ctx, service.Intent{Kind: service.IntentDisconnect, ConnID: c.id}); err != nil {
			log.Printf("[HUB] conn=%s disconnect: %v", c.id, err)
		}
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[HUB] conn=%s read error: %v", c.id, err)
			}
			break
		}

		in, err := DecodeIntent(c.id, message)
		if err != nil {
			c.hub.Publish(service.Outbound{
				Event:   service.EventUserError,
				ConnIDs: []string{c.id},
				Payload: service.UserError{Code: "rejected", Message: err.Error()},
			})
			continue
		}

		// Rejections have already been published to this connection.
		_ = c.dispatcher.Handle(c.ctx, in)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message; clients parse each as a JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
