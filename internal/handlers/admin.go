package handlers

import (
	"net/http"

	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AdminHandler serves the admin console. Every route checks a capability
// against the caller's current role.
type AdminHandler struct {
	userService      *services.UserService
	campaignService  *services.CampaignService
	donationService  *services.DonationService
	dashboardService *services.DashboardService
	validator        *validation.Validator
}

func NewAdminHandler(
	userService *services.UserService,
	campaignService *services.CampaignService,
	donationService *services.DonationService,
	dashboardService *services.DashboardService,
	v *validation.Validator,
) *AdminHandler {
	return &AdminHandler{
		userService:      userService,
		campaignService:  campaignService,
		donationService:  donationService,
		dashboardService: dashboardService,
		validator:        v,
	}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(
	r chi.Router,
	userService *services.UserService,
	campaignService *services.CampaignService,
	donationService *services.DonationService,
	dashboardService *services.DashboardService,
	v *validation.Validator,
	auth *Auth,
) {
	handler := NewAdminHandler(userService, campaignService, donationService, dashboardService, v)

	manageUsers := auth.RequireCapability(services.CapManageUsers)
	moderate := auth.RequireCapability(services.CapModerateCampaigns)

	r.With(manageUsers).Get("/users", handler.ListUsers)
	r.With(manageUsers).Patch("/users/{userID}/role", handler.SetRole)
	r.With(manageUsers).Post("/create-admin", handler.CreateAdmin)

	r.With(moderate).Get("/campaigns", handler.ListCampaigns)
	r.With(moderate).Get("/campaigns/pending", handler.PendingCampaigns)
	r.With(moderate).Get("/campaigns/recent", handler.RecentCampaigns)
	r.With(moderate).Patch("/campaigns/{campaignID}/moderate", handler.Moderate)
	r.With(auth.RequireCapability(services.CapReconcileFunds)).Post("/campaigns/recalculate", handler.Recalculate)

	r.With(auth.RequireCapability(services.CapViewDashboard)).Get("/dashboard/stats", handler.Stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.dashboardService.UsersWithStats(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actorID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RoleUpdateRequest
	if !decodeBody(w, r, h.validator, validation.RoleUpdate, &req) {
		return
	}

	updated, err := h.userService.SetRole(r.Context(), actorID, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		writeServiceError(w, r, err, "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		Message: "role updated, the user must reset their password before signing in",
		User:    updated,
	})
}

// CreateAdmin provisions another administrator account.
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, h.validator, validation.CreateAdmin, &req) {
		return
	}

	created, err := h.userService.Create(r.Context(), req.Email, req.Name, req.Password, types.RoleAdmin)
	if err != nil {
		writeServiceError(w, r, err, "failed to create admin")
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{Message: "admin created", User: created})
}

func (h *AdminHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := r.URL.Query()
	items, total, err := h.campaignService.ListAdmin(r.Context(), query.Get("status"), query.Get("search"), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *AdminHandler) PendingCampaigns(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.campaignService.ListPending(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list pending campaigns")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *AdminHandler) RecentCampaigns(w http.ResponseWriter, r *http.Request) {
	items, err := h.campaignService.ListRecent(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list recent campaigns")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AdminHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	moderatorID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ModerationRequest
	if !decodeBody(w, r, h.validator, validation.Moderation, &req) {
		return
	}

	campaign, err := h.campaignService.Moderate(r.Context(), chi.URLParam(r, "campaignID"), moderatorID, req.Status, req.Note)
	if err != nil {
		writeServiceError(w, r, err, "failed to moderate campaign")
		return
	}
	writeJSON(w, http.StatusOK, CampaignResponse{Message: "campaign " + campaign.Status, Campaign: campaign})
}

// Recalculate rebuilds every campaign's raised amount from the donation ledger.
func (h *AdminHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	report, err := h.donationService.Reconcile(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to recalculate campaign totals")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboardService.AdminStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to load dashboard stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type RoleUpdateRequest struct {
	Role string `json:"role"`
}

type ModerationRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type UserResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}
