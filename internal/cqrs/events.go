package cqrs

import (
	"encoding/json"
	"time"

	"github.com/danghamo/satwatch/internal/view"
)

// ViewUpdatedEvent is published every time the view redraws
type ViewUpdatedEvent struct {
	Panel     view.Panel      `json:"panel"`
	Changes   json.RawMessage `json:"changes,omitempty"` // RFC 7386 merge patch against the previous panel
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id"`
}

// NotificationEvent carries an arbitrary JSON-RPC notification to every
// instance's connected clients
type NotificationEvent struct {
	Method    string    `json:"method"`
	Params    any       `json:"params"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Event names as used for bus topics and handler registration
const (
	ViewUpdatedEventName  = "ViewUpdatedEvent"
	NotificationEventName = "NotificationEvent"
)
