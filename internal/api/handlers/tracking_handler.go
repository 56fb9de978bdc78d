package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/logger"
	"github.com/danghamo/satwatch/pkg/wsx"
)

// MethodTrackingToggled is broadcast to clients after a toggle
const MethodTrackingToggled = "tracking.toggled"

// Toggler is the user-facing control surface, implemented by view.Adapter
type Toggler interface {
	Toggle() (tracking.State, error)
	Panel() view.Panel
}

// StatusSource exposes controller state, implemented by tracking.Controller
type StatusSource interface {
	State() tracking.State
	Generation() uint64
}

// Notifier broadcasts a notification to all instances
type Notifier interface {
	BroadcastToAll(ctx context.Context, method string, params any) error
}

// TrackingHandler serves the tracking control surface as JSON-RPC 2.0
type TrackingHandler struct {
	logger   *logger.Logger
	toggler  Toggler
	status   StatusSource
	notifier Notifier
}

// NewTrackingHandler creates a new tracking handler. notifier may be nil.
func NewTrackingHandler(logger *logger.Logger, toggler Toggler, status StatusSource, notifier Notifier) *TrackingHandler {
	return &TrackingHandler{
		logger:   logger.WithComponent("tracking-handler"),
		toggler:  toggler,
		status:   status,
		notifier: notifier,
	}
}

// ToggleTrackingRequest has no params
type ToggleTrackingRequest struct{}

// TrackingStateResponse is the state after a toggle
type TrackingStateResponse struct {
	State      tracking.State `json:"state" swaggertype:"string" example:"running"`
	Tracking   bool           `json:"tracking"`
	Generation uint64         `json:"generation"`
}

// StatusTrackingRequest has no params
type StatusTrackingRequest struct{}

// StatusTrackingResponse is the current state and rendered panel
type StatusTrackingResponse struct {
	State      tracking.State `json:"state" swaggertype:"string" example:"running"`
	Tracking   bool           `json:"tracking"`
	Generation uint64         `json:"generation"`
	Panel      view.Panel     `json:"panel"`
}

// HandleToggle handles POST /api/v1/tracking.Toggle
// @Summary Toggle tracking
// @Description Start tracking when stopped, stop it when running
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[ToggleTrackingRequest] false "JSON-RPC request, params are ignored"
// @Success 200 {object} jsonrpcx.ResponseT[TrackingStateResponse] "State after the toggle"
// @Failure 200 {object} jsonrpcx.ErrorResponse "JSON-RPC error"
// @Router /api/v1/tracking.Toggle [post]
func (h *TrackingHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	resp, err := h.toggle(r.Context())
	if err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.ServiceClosed, "Tracking service is shut down")
		return
	}

	jsonrpcx.Success(w, req.ID, resp)
}

// HandleStatus handles POST /api/v1/tracking.Status
// @Summary Tracking status
// @Description Current tracking state and the rendered info panel
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[StatusTrackingRequest] false "JSON-RPC request, params are ignored"
// @Success 200 {object} jsonrpcx.ResponseT[StatusTrackingResponse] "Current state"
// @Failure 200 {object} jsonrpcx.ErrorResponse "JSON-RPC error"
// @Router /api/v1/tracking.Status [post]
func (h *TrackingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	jsonrpcx.Success(w, req.ID, h.currentStatus())
}

// === AutoRouter Compatible Methods ===

// Toggle handles tracking toggles (autorouter compatible)
func (h *TrackingHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.HandleToggle(w, r)
}

// Status handles status retrieval (autorouter compatible)
func (h *TrackingHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.HandleStatus(w, r)
}

// WSAction serves websocket client actions: "toggle" and "status"
func (h *TrackingHandler) WSAction(ctx context.Context, action string) (any, error) {
	switch action {
	case "toggle":
		return h.toggle(ctx)
	case "status":
		return h.currentStatus(), nil
	default:
		return nil, wsx.ErrUnknownAction
	}
}

func (h *TrackingHandler) toggle(ctx context.Context) (TrackingStateResponse, error) {
	state, err := h.toggler.Toggle()
	if err != nil {
		h.logger.Warn("Toggle failed", zap.Error(err))
		return TrackingStateResponse{}, err
	}

	resp := TrackingStateResponse{
		State:      state,
		Tracking:   state == tracking.Running,
		Generation: h.status.Generation(),
	}

	if h.notifier != nil {
		if err := h.notifier.BroadcastToAll(ctx, MethodTrackingToggled, resp); err != nil {
			h.logger.Warn("Failed to broadcast toggle", zap.Error(err))
		}
	}
	return resp, nil
}

func (h *TrackingHandler) currentStatus() StatusTrackingResponse {
	state := h.status.State()
	return StatusTrackingResponse{
		State:      state,
		Tracking:   state == tracking.Running,
		Generation: h.status.Generation(),
		Panel:      h.toggler.Panel(),
	}
}
