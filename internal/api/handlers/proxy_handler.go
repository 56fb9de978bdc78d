package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/pkg/httpx"
	"github.com/danghamo/satwatch/pkg/logger"
)

// proxyFailureBody is returned for any upstream failure
const proxyFailureBody = `{"error":"Failed to fetch ISS data"}`

// ProxyHandler relays the upstream position document to browsers that
// cannot call it directly
type ProxyHandler struct {
	logger   *logger.Logger
	client   *httpx.Client
	upstream string
}

// NewProxyHandler creates a pass-through for upstream
func NewProxyHandler(logger *logger.Logger, client *httpx.Client, upstream string) *ProxyHandler {
	return &ProxyHandler{
		logger:   logger.WithComponent("proxy-handler"),
		client:   client,
		upstream: upstream,
	}
}

// HandleProxy handles GET /api/iss
// @Summary Current ISS position
// @Description Relays the upstream position JSON unchanged
// @Tags proxy
// @Produce json
// @Success 200 {object} map[string]interface{} "Upstream position document"
// @Failure 500 {object} map[string]string "Upstream failure"
// @Router /api/iss [get]
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.client.Get(r.Context(), h.upstream)
	if err != nil {
		h.logger.Warn("Upstream fetch failed",
			zap.String("upstream", h.upstream),
			zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(proxyFailureBody))
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(resp.Body)
	}
}
