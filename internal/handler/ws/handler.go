package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/socket"
)

// Handler owns the websocket endpoint: handshake authentication, admission
// into the connection registry and the per-connection read loop.
type Handler struct {
	sock     *socket.Registry
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(sock *socket.Registry) *Handler {
	return &Handler{
		sock: sock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type sendPayload struct {
	Content string `json:"content"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionId")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	sess, err := h.sock.Authenticate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, socket.ErrSessionIDMissing):
			http.Error(w, socket.ErrSessionIDMissing.Error(), http.StatusBadRequest)
		case errors.Is(err, socket.ErrSessionInvalid):
			http.Error(w, socket.ErrSessionInvalid.Error(), http.StatusUnauthorized)
		default:
			http.Error(w, socket.ErrAuthInternal.Error(), http.StatusInternalServerError)
		}
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}

	conn := newWSConn(raw)
	defer conn.Close()

	h.sock.Admit(conn, sess.UserID, sess.ID)
	defer h.sock.Disconnect(sess.UserID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	raw.SetReadDeadline(time.Now().Add(60 * time.Second))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	conn.Send(socket.EventSessionCreated, map[string]any{"sessionId": sess.ID})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg envelope
			if err := raw.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error session=%s: %v", sess.ID, err)
				}
				return
			}

			raw.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleMessage(conn, sess.ID, &msg)
		}
	}
}

func (h *Handler) handleMessage(conn *wsConn, sessionID string, msg *envelope) {
	switch msg.Type {
	case socket.EventSendMessage:
		var payload sendPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(conn, "invalid message payload")
			return
		}
		// Validation failures were already reported to the connection.
		_, _ = h.sock.Publish(conn, sessionID, payload.Content)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) sendError(conn *wsConn, message string) {
	payload := map[string]any{"error": message, "timestamp": time.Now().UTC().Format(time.RFC3339)}
	if err := conn.Send(socket.EventError, payload); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop keeps the connection alive under the 60s read deadline.
func (h *Handler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}
