package wsx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/pkg/logger"
)

// ErrUnknownAction is returned by an ActionHandler for actions it does not
// serve; the client receives a method-not-found error
var ErrUnknownAction = errors.New("unknown action")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is what clients send: {"action":"toggle","id":1}
type Message struct {
	Action string `json:"action"`
	ID     any    `json:"id,omitempty"`
}

// ActionHandler serves one client action and returns the reply result
type ActionHandler func(ctx context.Context, action string) (any, error)

// Client is one websocket connection
type Client struct {
	ID   string
	Send chan []byte
}

// Hub fans notifications out to websocket clients and dispatches their
// actions
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader
	onAction ActionHandler
	initial  func() (jsonrpcx.Notification, bool)

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// Option configures the hub
type Option func(*Hub)

// WithActionHandler sets the handler for inbound client actions
func WithActionHandler(h ActionHandler) Option {
	return func(hub *Hub) { hub.onAction = h }
}

// WithInitialMessage sends the current state to each new client
func WithInitialMessage(fn func() (jsonrpcx.Notification, bool)) Option {
	return func(hub *Hub) { hub.initial = fn }
}

// WithCheckOrigin overrides the origin check; all origins are allowed by default
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(hub *Hub) { hub.upgrader.CheckOrigin = fn }
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: log.WithComponent("ws-hub"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) register() *Client {
	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(client.Send)
		return client
	}
	h.clients[client] = struct{}{}
	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// BroadcastToAll queues a notification for every client. Slow clients miss
// messages rather than block the hub.
func (h *Hub) BroadcastToAll(notification jsonrpcx.Notification) {
	payload, err := json.Marshal(notification)
	if err != nil {
		h.logger.Error("Failed to marshal notification", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("WebSocket client lagging, dropping message", zap.String("clientId", client.ID))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
}

// HandleWS upgrades the connection and serves it until either side closes
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := h.register()
	defer h.unregister(client)
	h.logger.Debug("WebSocket client connected", zap.String("clientId", client.ID))

	if h.initial != nil {
		if n, ok := h.initial(); ok {
			if payload, err := json.Marshal(n); err == nil {
				h.enqueue(client, payload)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, client)
	}()

	h.readPump(r.Context(), conn, client)
	h.unregister(client)
	<-done
	h.logger.Debug("WebSocket client disconnected", zap.String("clientId", client.ID))
}

// enqueue sends to one client without racing a concurrent unregister
func (h *Hub) enqueue(client *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.String("clientId", client.ID), zap.Error(err))
			}
			return
		}

		var resp jsonrpcx.Response
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			resp = jsonrpcx.Response{
				JSONRPC: jsonrpcx.Version,
				Error:   &jsonrpcx.Error{Code: jsonrpcx.ParseError, Message: "invalid message"},
			}
		} else {
			resp = h.dispatch(ctx, msg)
		}

		reply, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		h.enqueue(client, reply)
	}
}

func (h *Hub) dispatch(ctx context.Context, msg Message) jsonrpcx.Response {
	resp := jsonrpcx.Response{JSONRPC: jsonrpcx.Version, ID: msg.ID}
	if msg.Action == "" {
		resp.Error = &jsonrpcx.Error{Code: jsonrpcx.InvalidRequest, Message: "action is required"}
		return resp
	}
	if h.onAction == nil {
		resp.Error = &jsonrpcx.Error{Code: jsonrpcx.MethodNotFound, Message: "unknown action: " + msg.Action}
		return resp
	}

	result, err := h.onAction(ctx, msg.Action)
	switch {
	case errors.Is(err, ErrUnknownAction):
		resp.Error = &jsonrpcx.Error{Code: jsonrpcx.MethodNotFound, Message: "unknown action: " + msg.Action}
	case err != nil:
		h.logger.Warn("WebSocket action failed", zap.String("action", msg.Action), zap.Error(err))
		resp.Error = &jsonrpcx.Error{Code: jsonrpcx.CodeFor(err), Message: err.Error()}
	default:
		resp.Result = result
	}
	return resp
}

// writePump is the only writer on conn
func (h *Hub) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
