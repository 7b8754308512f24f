package grants

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-hq/vantage/internal/platform/httpx"
	"github.com/vantage-hq/vantage/internal/shared"
)

// Handler exposes the two read endpoints the client-side stores poll.
// Both are idempotent GETs keyed off the forwarded session credential.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the grants HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the authorization read endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.getPermissions)
	r.Get("/field-rules", h.getFieldRules)
}

type roleResponse struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	HierarchyLevel int    `json:"hierarchyLevel"`
}

type orgContextResponse struct {
	UserID          int64   `json:"userId"`
	DepartmentIDs   []int64 `json:"departmentIds"`
	LOBIDs          []int64 `json:"lobIds"`
	DivisionIDs     []int64 `json:"divisionIds"`
	LocationIDs     []int64 `json:"locationIds"`
	DirectReportIDs []int64 `json:"directReportIds"`
	SupervisorIDs   []int64 `json:"supervisorIds"`
}

type permissionsResponse struct {
	Permissions []string           `json:"permissions"`
	Roles       []roleResponse     `json:"roles"`
	Tags        []string           `json:"tags"`
	OrgContext  orgContextResponse `json:"orgContext"`
	ExpiresAt   int64              `json:"expiresAt"`
}

type fieldRuleResponse struct {
	Level   int    `json:"level"`
	Masking string `json:"masking"`
}

type fieldRulesResponse struct {
	Config       map[string]map[string]fieldRuleResponse `json:"config"`
	UserMaxLevel int                                     `json:"userMaxLevel"`
}

func (h *Handler) getPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	snap, err := h.service.LoadGrants(r.Context(), userID)
	if err != nil {
		h.logger.Error("load grants", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Loader Unavailable", "")
		return
	}

	codes := snap.PermissionCodes()
	sort.Strings(codes)
	roles := make([]roleResponse, len(snap.Roles))
	for i, role := range snap.Roles {
		roles[i] = roleResponse{Code: role.Code, Name: role.Name, HierarchyLevel: role.HierarchyLevel}
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Permissions: codes,
		Roles:       roles,
		Tags:        snap.Tags,
		OrgContext: orgContextResponse{
			UserID:          snap.Org.UserID,
			DepartmentIDs:   snap.Org.DepartmentIDs,
			LOBIDs:          snap.Org.LOBIDs,
			DivisionIDs:     snap.Org.DivisionIDs,
			LocationIDs:     snap.Org.LocationIDs,
			DirectReportIDs: snap.Org.DirectReportIDs,
			SupervisorIDs:   snap.Org.SupervisorIDs,
		},
		ExpiresAt: snap.ExpiresAt.UnixMilli(),
	})
}

func (h *Handler) getFieldRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	snap, err := h.service.LoadFieldRules(r.Context(), userID)
	if err != nil {
		h.logger.Error("load field rules", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Loader Unavailable", "")
		return
	}

	config := make(map[string]map[string]fieldRuleResponse)
	for _, rule := range snap.Rules() {
		fields, ok := config[rule.Table]
		if !ok {
			fields = make(map[string]fieldRuleResponse)
			config[rule.Table] = fields
		}
		fields[rule.Field] = fieldRuleResponse{Level: rule.Level, Masking: string(rule.Masking)}
	}
	httpx.JSON(w, http.StatusOK, fieldRulesResponse{
		Config:       config,
		UserMaxLevel: snap.UserMaxLevel,
	})
}

func currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
