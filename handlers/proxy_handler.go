package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/middleware"
	"github.com/upb/tracking-bridge/services/upstream"
	"github.com/upb/tracking-bridge/utils"
)

// Forwarder relays an authenticated call to the vendor API
type Forwarder interface {
	Forward(ctx context.Context, id *identity.Identity, path string, params map[string]interface{}) (*upstream.Response, error)
}

// ProxyRequest is the body of POST /api/vendor/proxy
type ProxyRequest struct {
	Path   string                 `json:"path"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ProxyHandler serves the vendor proxy endpoint
type ProxyHandler struct {
	forwarder Forwarder
	logger    *zap.Logger
}

// NewProxyHandler creates a new ProxyHandler
func NewProxyHandler(forwarder Forwarder, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{
		forwarder: forwarder,
		logger:    logger,
	}
}

// HandleProxy handles POST /api/vendor/proxy
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProxyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		h.logger.Warn("failed to decode proxy request",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	resp, err := h.forwarder.Forward(ctx, middleware.GetIdentity(ctx), req.Path, req.Params)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteRaw(w, resp.StatusCode, resp.ContentType, resp.Body); err != nil {
		h.logger.Error("failed to relay vendor response", zap.Error(err))
	}
}
