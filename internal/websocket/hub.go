package chatws

import (
	"context"
	"encoding/json"

	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/events"
)

// presenceWriter mirrors connection state into the external presence
// registry; the hub itself stays the only in-process connection map.
type presenceWriter interface {
	SetOnline(ctx context.Context, userID int64) error
	SetOffline(ctx context.Context, userID int64) error
	Refresh(ctx context.Context, userID int64) error
}

type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan events.Event
	presence   presenceWriter
	log        *zap.SugaredLogger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte
}

func NewHub(presence presenceWriter, log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 64),
		presence:   presence,
		log:        log,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			if err := h.presence.SetOnline(context.Background(), client.userID); err != nil {
				h.log.Warnw("presence set online", "user", client.userID, "error", err)
			}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
				if err := h.presence.SetOffline(context.Background(), client.userID); err != nil {
					h.log.Warnw("presence set offline", "user", client.userID, "error", err)
				}
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Dispatch queues an event for delivery to connected recipients. A full queue
// drops the event; realtime delivery is best-effort and clients resync over
// the REST listing.
func (h *Hub) Dispatch(_ context.Context, event events.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warnw("realtime queue full, event dropped", "type", event.Type)
	}
}

func (h *Hub) deliver(event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Warnw("encode realtime event", "type", event.Type, "error", err)
		return
	}

	seen := make(map[int64]struct{}, len(event.Recipients))
	for _, userID := range event.Recipients {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		h.sendToUser(userID, payload)
	}
}

func (h *Hub) sendToUser(userID int64, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ReadPump drains the connection. Clients mutate chat state over the REST
// surface; inbound frames only keep the session and its presence alive.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		if err := c.hub.presence.Refresh(context.Background(), c.userID); err != nil {
			c.hub.log.Warnw("presence refresh", "user", c.userID, "error", err)
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
