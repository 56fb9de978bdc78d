package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
)

// ServerHandler handles server information requests
type ServerHandler struct {
	info ServerInfoResponse
}

// ServerInfoResponse represents server information
type ServerInfoResponse struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	URL             string `json:"url"`
	Version         string `json:"version"`
	PositionSource  string `json:"position_source"`
	RefreshInterval string `json:"refresh_interval"`
}

// NewServerHandler creates a new server handler
func NewServerHandler(host string, port int, version, positionSource string, interval time.Duration) *ServerHandler {
	return &ServerHandler{info: ServerInfoResponse{
		Host:            host,
		Port:            port,
		URL:             fmt.Sprintf("http://%s:%d", host, port),
		Version:         version,
		PositionSource:  positionSource,
		RefreshInterval: interval.String(),
	}}
}

// HandleServerInfo handles POST /api/v1/server.Info
// @Summary Server information
// @Tags server
// @Accept json
// @Produce json
// @Success 200 {object} jsonrpcx.ResponseT[ServerInfoResponse] "Server information"
// @Router /api/v1/server.Info [post]
func (h *ServerHandler) HandleServerInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	jsonrpcx.Success(w, req.ID, h.info)
}

// === AutoRouter Compatible Methods ===

// Info handles server info retrieval (autorouter compatible)
func (h *ServerHandler) Info(w http.ResponseWriter, r *http.Request) {
	h.HandleServerInfo(w, r)
}
