package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/middleware"
	"github.com/upb/tracking-bridge/services/bridge"
	"github.com/upb/tracking-bridge/utils"
)

// LoginService is the subset of the login bridge used by BridgeHandler
type LoginService interface {
	Login(ctx context.Context, in bridge.LoginInput) (*bridge.LoginResult, error)
	Logout(ctx context.Context, owner string) error
}

// BridgeHandler serves the vendor login endpoints
type BridgeHandler struct {
	service LoginService
	logger  *zap.Logger
}

// NewBridgeHandler creates a new BridgeHandler
func NewBridgeHandler(service LoginService, logger *zap.Logger) *BridgeHandler {
	return &BridgeHandler{
		service: service,
		logger:  logger,
	}
}

// LoginRequest is the body of POST /api/auth/vendor/login
type LoginRequest struct {
	Username       string `json:"username" validate:"required,notblank,max=255"`
	Password       string `json:"password" validate:"required,notblank"`
	Lang           string `json:"lang,omitempty"`
	TimeZoneSecond *int   `json:"timeZoneSecond,omitempty"`
}

// LogoutRequest is the optional body of POST /api/auth/vendor/logout
type LogoutRequest struct {
	Username string `json:"username,omitempty"`
}

// VendorMeResponse is returned by GET /api/auth/vendor/me
type VendorMeResponse struct {
	Name   string `json:"name"`
	RoleID int    `json:"roleId"`
}

// MeResponse is returned by GET /api/auth/me
type MeResponse struct {
	ID       *string `json:"id"`
	Username *string `json:"username"`
	Role     string  `json:"role"`
}

// HandleLogin handles POST /api/auth/vendor/login
func (h *BridgeHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(ctx, bridge.LoginInput{
		Username:        req.Username,
		Password:        req.Password,
		Locale:          req.Lang,
		TZOffsetSeconds: req.TimeZoneSecond,
		ClientIP:        getClientIP(r),
		UserAgent:       r.UserAgent(),
		RequestID:       requestID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleVendorMe handles GET /api/auth/vendor/me
func (h *BridgeHandler) HandleVendorMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if id == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	roleID := identity.RoleUser.ID
	if v, err := strconv.Atoi(id.Claims.First(identity.ClaimRoleID)); err == nil {
		roleID = v
	}

	_ = utils.WriteOK(w, VendorMeResponse{
		Name:   id.Name,
		RoleID: roleID,
	})
}

// HandleLogout handles POST /api/auth/vendor/logout. The body username is
// only consulted for anonymous callers.
func (h *BridgeHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := ""
	if id := middleware.GetIdentity(ctx); id != nil {
		owner = id.Subject
	} else {
		var req LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			_ = utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}
		owner = req.Username
	}

	if err := h.service.Logout(ctx, owner); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]bool{"ok": true})
}

// HandleAuthMe handles GET /api/auth/me
func (h *BridgeHandler) HandleAuthMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if id == nil {
		_ = utils.WriteOK(w, MeResponse{Role: "user"})
		return
	}

	subject, name := id.Subject, id.Name
	_ = utils.WriteOK(w, MeResponse{
		ID:       &subject,
		Username: &name,
		Role:     id.Role.Name,
	})
}

// getClientIP returns the host of RemoteAddr. Forwarding headers are
// honoured only through chi's RealIP, mounted when proxies are trusted.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
