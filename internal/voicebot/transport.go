package voicebot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to complete the WebSocket handshake.
	handshakeTimeout = 10 * time.Second

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from the peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

// socket wraps one voice WebSocket connection. All writes come from the
// controller loop, so no write lock is held here.
type socket struct {
	conn *websocket.Conn
}

// dialVoiceSocket opens the voice endpoint with the session's bearer
// token in the handshake.
func dialVoiceSocket(ctx context.Context, url, token string) (*socket, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("voice websocket dial failed: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	return &socket{conn: conn}, nil
}

func (s *socket) writeJSON(v interface{}) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *socket) writeBinary(payload []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// readLoop pumps messages from the connection until it closes, invoking
// handle for each frame. The returned error is the close cause.
func (s *socket) readLoop(handle func(messageType int, data []byte)) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(messageType, data)
	}
}

// closeNormal sends a normal-closure frame then closes the connection.
func (s *socket) closeNormal() {
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	s.conn.Close()
}

func (s *socket) close() {
	s.conn.Close()
}
