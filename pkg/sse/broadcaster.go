package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/pkg/logger"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time
	mutex    sync.Mutex // serialises writes to this client
	once     sync.Once
}

func (c *SSEClient) close() {
	c.once.Do(func() { close(c.Done) })
}

// detach closes the client and waits for a write in progress to finish.
// No write starts once Done is closed, so the writer is unused afterwards.
func (c *SSEClient) detach() {
	c.close()
	c.mutex.Lock()
	c.mutex.Unlock()
}

// InitialMessage returns the notification sent to a client right after it
// connects, or false when there is nothing to send yet
type InitialMessage func() (jsonrpcx.Notification, bool)

// SSEBroadcaster manages SSE connections and broadcasts
type SSEBroadcaster struct {
	logger    *logger.Logger
	clients   map[string]*SSEClient
	mutex     sync.RWMutex
	broadcast chan []byte
	cleanup   *time.Ticker
	shutdown  chan struct{}
	closeOnce sync.Once

	initial    InitialMessage
	heartbeat  time.Duration
	staleAfter time.Duration
}

// Option configures the broadcaster
type Option func(*SSEBroadcaster)

// WithInitialMessage sends the current state to each new client
func WithInitialMessage(fn InitialMessage) Option {
	return func(b *SSEBroadcaster) { b.initial = fn }
}

// WithHeartbeat sets the keep-alive interval (default 30s)
func WithHeartbeat(d time.Duration) Option {
	return func(b *SSEBroadcaster) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewSSEBroadcaster creates a new SSE broadcaster
func NewSSEBroadcaster(log *logger.Logger, opts ...Option) *SSEBroadcaster {
	b := &SSEBroadcaster{
		logger:     log.WithComponent("sse-broadcaster"),
		clients:    make(map[string]*SSEClient),
		broadcast:  make(chan []byte, 256),
		cleanup:    time.NewTicker(30 * time.Second),
		shutdown:   make(chan struct{}),
		heartbeat:  30 * time.Second,
		staleAfter: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.broadcastLoop()
	go b.cleanupLoop()

	return b
}

// AddClient adds a new SSE client
func (b *SSEBroadcaster) AddClient(client *SSEClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.clients[client.ID] = client
	b.logger.Debug("SSE client connected", zap.String("clientId", client.ID))
}

// RemoveClient removes an SSE client
func (b *SSEBroadcaster) RemoveClient(clientID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if client, exists := b.clients[clientID]; exists {
		client.close()
		delete(b.clients, clientID)
		b.logger.Debug("SSE client disconnected", zap.String("clientId", clientID))
	}
}

// BroadcastToAll queues a notification for every connected client. Messages
// are dropped when the queue is full.
func (b *SSEBroadcaster) BroadcastToAll(notification jsonrpcx.Notification) {
	data, err := json.Marshal(notification)
	if err != nil {
		b.logger.Error("Failed to marshal JSON-RPC notification", zap.Error(err))
		return
	}

	select {
	case <-b.shutdown:
	case b.broadcast <- data:
	default:
		b.logger.Warn("Broadcast channel full, dropping message", zap.String("method", notification.Method))
	}
}

func (b *SSEBroadcaster) broadcastLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in broadcastLoop", zap.Any("panic", r))
			go b.broadcastLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			return
		case data := <-b.broadcast:
			b.mutex.RLock()
			clients := make([]*SSEClient, 0, len(b.clients))
			for _, client := range b.clients {
				clients = append(clients, client)
			}
			b.mutex.RUnlock()

			for _, client := range clients {
				if err := b.sendToClient(client, data); err != nil {
					b.logger.Warn("Failed to send to client",
						zap.String("clientId", client.ID),
						zap.Error(err))
					b.RemoveClient(client.ID)
				}
			}
		}
	}
}

// sendToClient writes one SSE data frame
func (b *SSEBroadcaster) sendToClient(client *SSEClient, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	if client.Writer == nil || client.Flusher == nil {
		return fmt.Errorf("client %s has no writer", client.ID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	select {
	case <-client.Done:
		return fmt.Errorf("client connection closed")
	default:
	}

	frame := fmt.Sprintf("data: %s\n\n", data)
	n, err := client.Writer.Write([]byte(frame))
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: wrote %d/%d bytes", n, len(frame))
	}

	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

// cleanupLoop removes clients that have not been written to for a while
func (b *SSEBroadcaster) cleanupLoop() {
	for {
		select {
		case <-b.shutdown:
			return
		case <-b.cleanup.C:
			now := time.Now()
			b.mutex.Lock()
			for clientID, client := range b.clients {
				client.mutex.Lock()
				idle := now.Sub(client.LastSeen)
				client.mutex.Unlock()
				if idle > b.staleAfter {
					b.logger.Debug("Removing stale SSE client", zap.String("clientId", clientID))
					client.close()
					delete(b.clients, clientID)
				}
			}
			b.mutex.Unlock()
		}
	}
}

// GetClientCount returns the number of connected clients
func (b *SSEBroadcaster) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and stops the background loops
func (b *SSEBroadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.shutdown)
		b.cleanup.Stop()

		b.mutex.Lock()
		defer b.mutex.Unlock()
		for _, client := range b.clients {
			client.close()
		}
		b.clients = make(map[string]*SSEClient)
		b.logger.Debug("SSE broadcaster shutdown complete")
	})
}

// HandleSSE streams notifications to the caller until it disconnects
func (b *SSEBroadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		b.logger.Error("SSE: response writer does not support flushing")
		http.Error(w, "Server-Sent Events not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &SSEClient{
		ID:       uuid.NewString(),
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}

	connected, _ := json.Marshal(map[string]string{"type": "connected", "client_id": client.ID})
	if err := b.sendToClient(client, connected); err != nil {
		b.logger.Warn("SSE: failed to send connected message", zap.Error(err))
		return
	}
	if b.initial != nil {
		if n, ok := b.initial(); ok {
			if data, err := json.Marshal(n); err == nil {
				if err := b.sendToClient(client, data); err != nil {
					return
				}
			}
		}
	}

	b.AddClient(client)
	defer func() {
		b.RemoveClient(client.ID)
		// w must not be touched after this handler returns
		client.detach()
	}()

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-client.Done:
			return
		case <-r.Context().Done():
			return
		case <-b.shutdown:
			return
		case <-heartbeat.C:
			hb, _ := json.Marshal(map[string]string{"type": "heartbeat", "timestamp": time.Now().Format(time.RFC3339)})
			if err := b.sendToClient(client, hb); err != nil {
				b.logger.Warn("Failed to send heartbeat", zap.String("clientId", client.ID), zap.Error(err))
				return
			}
		}
	}
}
