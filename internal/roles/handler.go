package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/platform/httpx"
	"github.com/vantage-hq/vantage/internal/shared"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny("roles.view"))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("roles.edit"))
		r.Post("/", h.createRole)
		r.Put("/{roleID}", h.updateRole)
		r.Put("/{roleID}/permissions", h.setRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("roles.assign"))
		r.Post("/{roleID}/assignments", h.assignRole)
		r.Delete("/{roleID}/assignments/{userID}", h.removeRole)
	})
}

type roleResponse struct {
	ID                 int64    `json:"id"`
	Code               string   `json:"code"`
	Name               string   `json:"name"`
	HierarchyLevel     int      `json:"hierarchyLevel"`
	IsSystem           bool     `json:"isSystem"`
	IsActive           bool     `json:"isActive"`
	MaxSensitivityTier int      `json:"maxSensitivityTier"`
	Permissions        []string `json:"permissions,omitempty"`
}

func toRoleResponse(role Role, codes []string) roleResponse {
	return roleResponse{
		ID:                 role.ID,
		Code:               role.Code,
		Name:               role.Name,
		HierarchyLevel:     role.HierarchyLevel,
		IsSystem:           role.IsSystem,
		IsActive:           role.IsActive,
		MaxSensitivityTier: role.MaxSensitivityTier,
		Permissions:        codes,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = toRoleResponse(role, nil)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, codes, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role, codes))
}

type createRoleRequest struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	HierarchyLevel     int    `json:"hierarchyLevel"`
	MaxSensitivityTier int    `json:"maxSensitivityTier"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleInput{
		Code:               req.Code,
		Name:               req.Name,
		HierarchyLevel:     req.HierarchyLevel,
		MaxSensitivityTier: req.MaxSensitivityTier,
	})
	if err != nil {
		h.respondServiceError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role, nil))
}

type updateRoleRequest struct {
	Name               string `json:"name"`
	HierarchyLevel     int    `json:"hierarchyLevel"`
	IsActive           bool   `json:"isActive"`
	MaxSensitivityTier int    `json:"maxSensitivityTier"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), UpdateRoleInput{
		ID:                 id,
		Name:               req.Name,
		HierarchyLevel:     req.HierarchyLevel,
		IsActive:           req.IsActive,
		MaxSensitivityTier: req.MaxSensitivityTier,
	})
	if err != nil {
		h.respondServiceError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role, nil))
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req setPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), id, req.Permissions); err != nil {
		h.respondServiceError(w, "set role permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	UserID    int64      `json:"userId"`
	ScopeType string     `json:"scopeType"`
	ScopeID   *int64     `json:"scopeId"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actorID, _ := currentUserID(r)
	if err := h.service.AssignRole(r.Context(), AssignRoleInput{
		UserID:     req.UserID,
		RoleID:     roleID,
		ScopeType:  req.ScopeType,
		ScopeID:    req.ScopeID,
		ExpiresAt:  req.ExpiresAt,
		AssignedBy: actorID,
	}); err != nil {
		h.respondServiceError(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrProtectedRole):
		httpx.Problem(w, http.StatusForbidden, "Protected Role", err.Error())
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrDuplicate):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
