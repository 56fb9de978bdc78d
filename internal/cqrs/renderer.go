package cqrs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/logger"
)

// EventRenderer publishes each drawn panel as a ViewUpdatedEvent carrying a
// merge patch against the previously published panel. Redraws that change
// nothing are not published.
type EventRenderer struct {
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time

	mu   sync.Mutex
	prev []byte
}

// NewEventRenderer creates a renderer publishing through publisher
func NewEventRenderer(publisher EventPublisher, log *logger.Logger) *EventRenderer {
	return &EventRenderer{
		publisher: publisher,
		logger:    log.WithComponent("event-renderer"),
		now:       time.Now,
	}
}

// Render implements view.Renderer
func (r *EventRenderer) Render(ctx context.Context, p view.Panel) error {
	current, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal panel: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changes, err := createPanelChanges(r.prev, current)
	if err != nil {
		return err
	}
	if changes == nil {
		return nil
	}

	event := &ViewUpdatedEvent{
		Panel:     p,
		Changes:   changes,
		Timestamp: r.now(),
		RequestID: uuid.NewString(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish view update: %w", err)
	}

	r.prev = current
	r.logger.Debug("View update published",
		zap.String("requestId", event.RequestID),
		zap.Int("changeBytes", len(changes)))
	return nil
}

// createPanelChanges returns the merge patch from prev to current, the whole
// document when there is no previous panel, or nil when nothing changed
func createPanelChanges(prev, current []byte) (json.RawMessage, error) {
	if prev == nil {
		return json.RawMessage(current), nil
	}

	patch, err := jsonpatch.CreateMergePatch(prev, current)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}
	if string(patch) == "{}" {
		return nil, nil
	}
	return json.RawMessage(patch), nil
}

// NotificationHelper sends JSON-RPC notifications to every instance's
// clients through the event bus
type NotificationHelper struct {
	publisher EventPublisher
}

// NewNotificationHelper creates a new notification helper
func NewNotificationHelper(publisher EventPublisher) *NotificationHelper {
	return &NotificationHelper{publisher: publisher}
}

// BroadcastToAll broadcasts a notification to all connected clients across
// all servers
func (h *NotificationHelper) BroadcastToAll(ctx context.Context, method string, params any) error {
	return h.publisher.Publish(ctx, &NotificationEvent{
		Method:    method,
		Params:    params,
		Timestamp: time.Now(),
		RequestID: uuid.NewString(),
	})
}
