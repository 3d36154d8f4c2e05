package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"nfaportal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event types pushed to browsers.
const (
	EventRequestsChanged = "requests_changed"
	EventSessionExpired  = "session_expired"
)

// Event is one push message. UserIDs limits delivery; empty means everyone.
type Event struct {
	Type      string `json:"type"`
	RequestID int    `json:"request_id,omitempty"`
	Status    string `json:"status,omitempty"`
	UserIDs   []int  `json:"-"`
}

// SessionResolver authenticates the ?token= query parameter.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int
}

type delivery struct {
	message []byte
	userIDs map[int]struct{}
}

// Hub maintains the set of active clients and delivers events to them
type Hub struct {
	clients    map[*Client]bool
	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewHub initializes a new WS Hub instance. An empty origins list accepts
// every origin.
func NewHub(origins []string, log zerolog.Logger) *Hub {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &Hub{
		deliver:    make(chan delivery, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log.With().Str("component", "websocket").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Run starts the core dispatch loop for WebSocket events
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Int("user_id", client.UserID).Msg("websocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug().Int("user_id", client.UserID).Msg("websocket client disconnected")
			}
			h.mu.Unlock()
		case d := <-h.deliver:
			h.mu.Lock()
			for client := range h.clients {
				if d.userIDs != nil {
					if _, ok := d.userIDs[client.UserID]; !ok {
						continue
					}
				}
				select {
				case client.Send <- d.message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues ev for delivery. It never blocks the caller; when the queue
// is full the event is dropped and logged.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn().Err(err).Str("type", ev.Type).Msg("failed to marshal websocket event")
		return
	}
	d := delivery{message: msg}
	if len(ev.UserIDs) > 0 {
		d.userIDs = make(map[int]struct{}, len(ev.UserIDs))
		for _, id := range ev.UserIDs {
			d.userIDs[id] = struct{}{}
		}
	}
	select {
	case h.deliver <- d:
	default:
		h.log.Warn().Str("type", ev.Type).Msg("websocket queue full, event dropped")
	}
}

// Connected returns the number of live clients.
func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	for {
		// browsers never send anything; reading detects the close
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug().Err(err).Int("user_id", c.UserID).Msg("websocket read failed")
			}
			break
		}
	}
}

// ServeWs handles websocket requests from the peer
func ServeWs(hub *Hub, resolver SessionResolver, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		hub.log.Debug().Msg("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	s, err := resolver.Resolve(c.Request.Context(), session.NormalizeBearer(token))
	if err != nil {
		hub.log.Debug().Err(err).Msg("websocket connection rejected")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), UserID: s.User.ID}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
