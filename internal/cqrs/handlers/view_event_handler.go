package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	cqrsevents "github.com/danghamo/satwatch/internal/cqrs"
	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/logger"
)

// Notification methods pushed to clients
const (
	MethodViewUpdated = "view.updated"
	MethodViewCurrent = "view.current"
)

// Broadcaster pushes a notification to every locally connected client
type Broadcaster interface {
	BroadcastToAll(notification jsonrpcx.Notification)
}

// PanelSink receives every published panel, e.g. an MQTT topic
type PanelSink interface {
	PublishPanel(ctx context.Context, panel view.Panel) error
}

// ViewEventHandler turns bus events into client notifications
type ViewEventHandler struct {
	broadcasters []Broadcaster
	sinks        []PanelSink
	logger       *logger.Logger
}

// NewViewEventHandler creates a handler fanning out to broadcasters and sinks
func NewViewEventHandler(broadcasters []Broadcaster, sinks []PanelSink, log *logger.Logger) *ViewEventHandler {
	return &ViewEventHandler{
		broadcasters: broadcasters,
		sinks:        sinks,
		logger:       log.WithComponent("view-event-handler"),
	}
}

// CurrentNotification wraps a full panel for clients that just connected
func CurrentNotification(panel view.Panel) jsonrpcx.Notification {
	return jsonrpcx.NewNotification(MethodViewCurrent, map[string]any{
		"panel": panel,
	})
}

// HandleViewUpdatedEvent broadcasts the changes and the full panel, then
// forwards the panel to the sinks. Sink failures are logged, not returned,
// so the event is not redelivered to clients.
func (h *ViewEventHandler) HandleViewUpdatedEvent(ctx context.Context, event *cqrsevents.ViewUpdatedEvent) error {
	h.logger.Debug("Handling view updated event",
		zap.String("requestId", event.RequestID))

	notification := jsonrpcx.NewNotification(MethodViewUpdated, map[string]any{
		"changes":    event.Changes,
		"panel":      event.Panel,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	})
	for _, b := range h.broadcasters {
		b.BroadcastToAll(notification)
	}

	for _, sink := range h.sinks {
		if err := sink.PublishPanel(ctx, event.Panel); err != nil {
			h.logger.Warn("Panel sink failed",
				zap.String("requestId", event.RequestID),
				zap.Error(err))
		}
	}
	return nil
}

// HandleNotificationEvent relays an arbitrary notification
func (h *ViewEventHandler) HandleNotificationEvent(ctx context.Context, event *cqrsevents.NotificationEvent) error {
	h.logger.Debug("Handling notification event",
		zap.String("method", event.Method),
		zap.String("requestId", event.RequestID))

	notification := jsonrpcx.NewNotification(event.Method, event.Params)
	for _, b := range h.broadcasters {
		b.BroadcastToAll(notification)
	}
	return nil
}
