package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/pkg/logger"
)

// TrackHandler serves the recorded ground track
type TrackHandler struct {
	logger *logger.Logger
	repo   satellite.TrackRepository
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(logger *logger.Logger, repo satellite.TrackRepository) *TrackHandler {
	return &TrackHandler{
		logger: logger.WithComponent("track-handler"),
		repo:   repo,
	}
}

// GroundTrackRequest limits the number of points; 0 returns all
type GroundTrackRequest struct {
	Limit int `json:"limit" example:"60"`
}

// TrackPoint is one recorded position
type TrackPoint struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// GroundTrackResponse lists recorded positions, oldest first
type GroundTrackResponse struct {
	Points []TrackPoint `json:"points"`
}

// HandleGroundTrack handles POST /api/v1/tracking.GroundTrack
// @Summary Recorded ground track
// @Description Recent positions, oldest first, for drawing the trail behind the marker
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[GroundTrackRequest] false "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[GroundTrackResponse] "Recorded positions"
// @Failure 200 {object} jsonrpcx.ErrorResponse "JSON-RPC error"
// @Router /api/v1/tracking.GroundTrack [post]
func (h *TrackHandler) HandleGroundTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	var params GroundTrackRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Limit < 0 {
			jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "limit must be a non-negative integer")
			return
		}
	}

	samples, err := h.repo.Recent(r.Context(), params.Limit)
	if err != nil {
		h.logger.Error("Failed to load ground track", zap.Error(err))
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InternalError, "Failed to load ground track")
		return
	}

	resp := GroundTrackResponse{Points: make([]TrackPoint, 0, len(samples))}
	for _, s := range samples {
		resp.Points = append(resp.Points, TrackPoint{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Timestamp: s.Timestamp,
		})
	}
	jsonrpcx.Success(w, req.ID, resp)
}

// === AutoRouter Compatible Methods ===

// GroundTrack handles ground track retrieval (autorouter compatible)
func (h *TrackHandler) GroundTrack(w http.ResponseWriter, r *http.Request) {
	h.HandleGroundTrack(w, r)
}
