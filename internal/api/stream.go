package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/studyhall/voxley/internal/voicebot"
	"github.com/studyhall/voxley/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Loopback-only server; the UI connects from a local origin.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamHub maintains the set of UI connections subscribed to session
// events and fans the conversation stream out to them.
type StreamHub struct {
	conversation *usecase.ConversationService

	// Register requests from the clients.
	register chan *streamClient

	// Unregister requests from clients.
	unregister chan *streamClient

	clients map[*streamClient]struct{}

	logger *zap.Logger
}

// streamClient is a middleman between one websocket connection and the
// conversation event stream.
type streamClient struct {
	hub    *StreamHub
	conn   *websocket.Conn
	events <-chan voicebot.Event
	cancel func()
}

// NewStreamHub creates the event fan-out hub.
func NewStreamHub(conversation *usecase.ConversationService, logger *zap.Logger) *StreamHub {
	return &StreamHub{
		conversation: conversation,
		register:     make(chan *streamClient),
		unregister:   make(chan *streamClient),
		clients:      make(map[*streamClient]struct{}),
		logger:       logger,
	}
}

// Run starts the hub's main loop
func (h *StreamHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info("Event stream client connected",
				zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.cancel()
			}
			h.logger.Info("Event stream client disconnected",
				zap.Int("clients", len(h.clients)))
		}
	}
}

// ServeWS upgrades one UI connection and streams session events to it.
func (h *StreamHub) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	events, cancel := h.conversation.Subscribe()
	client := &streamClient{
		hub:    h,
		conn:   conn,
		events: events,
		cancel: cancel,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump discards inbound frames and notices when the peer goes away.
func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes session events to the peer.
func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	// The UI always starts from the current state.
	snapshot := voicebot.Event{
		Kind:   voicebot.EventStatusChanged,
		Status: c.hub.conversation.Status(),
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(snapshot); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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
