package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/models"
	"github.com/upb/tracking-bridge/repositories"
	"github.com/upb/tracking-bridge/services"
	"github.com/upb/tracking-bridge/utils"
)

const (
	defaultUserPageSize  = 100
	maxUserPageSize      = 500
	defaultLoginPageSize = 20
	maxLoginPageSize     = 100
)

// UserHandler serves the admin user endpoints
type UserHandler struct {
	users  repositories.UserRepository
	audits repositories.LoginAuditRepository
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users repositories.UserRepository, audits repositories.LoginAuditRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		audits: audits,
		logger: logger,
	}
}

// UpdateUserRequest is the body of PUT /api/users/{id}
type UpdateUserRequest struct {
	IsAdmin *bool `json:"isAdmin" validate:"required"`
}

// HandleList handles GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultUserPageSize, maxUserPageSize)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	offset, err := queryInt(r, "offset", 0, -1)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list users", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, users)
}

// HandleUpdate handles PUT /api/users/{id}. Only the admin flag is mutable.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.users.SetAdmin(r.Context(), id, *req.IsAdmin)
	if err != nil {
		HandleServiceError(w, repositoryError("failed to update user", err), h.logger)
		return
	}

	h.logger.Info("user admin flag updated",
		zap.String("user_id", user.ID.String()),
		zap.Bool("is_admin", user.IsAdmin))
	_ = utils.WriteOK(w, user)
}

// HandleLogins handles GET /api/users/{id}/logins
func (h *UserHandler) HandleLogins(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	limit, err := queryInt(r, "limit", defaultLoginPageSize, maxLoginPageSize)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if _, err := h.users.GetByID(ctx, id); err != nil {
		HandleServiceError(w, repositoryError("failed to load user", err), h.logger)
		return
	}

	audits, err := h.audits.ListByUser(ctx, id, limit)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list logins", err), h.logger)
		return
	}
	if audits == nil {
		audits = []*models.LoginAudit{}
	}

	_ = utils.WriteOK(w, audits)
}

func repositoryError(message string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrUserNotFound
	}
	return services.WrapInternal(message, err)
}

// queryInt reads a non-negative integer query parameter, capped at max when
// max is positive.
func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	if max > 0 && v > max {
		v = max
	}
	return v, nil
}
