package handlers

import (
	"net/http"

	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// DashboardHandler serves the signed in user's overview pages.
type DashboardHandler struct {
	dashboardService *services.DashboardService
	campaignService  *services.CampaignService
	donationService  *services.DonationService
}

func NewDashboardHandler(dashboardService *services.DashboardService, campaignService *services.CampaignService, donationService *services.DonationService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		campaignService:  campaignService,
		donationService:  donationService,
	}
}

// DashboardRouter registers dashboard routes on the given router.
func DashboardRouter(
	r chi.Router,
	dashboardService *services.DashboardService,
	campaignService *services.CampaignService,
	donationService *services.DonationService,
	auth *Auth,
) {
	handler := NewDashboardHandler(dashboardService, campaignService, donationService)

	r.Use(auth.Required)
	r.Get("/user", handler.UserDashboard)
	r.Get("/donations", handler.Donations)
	r.Get("/campaigns/{campaignID}/stats", handler.CampaignStats)
}

func (h *DashboardHandler) UserDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	dash, err := h.dashboardService.UserDashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *DashboardHandler) Donations(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	history, err := h.donationService.History(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load donations")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *DashboardHandler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.campaignService.Stats(r.Context(), chi.URLParam(r, "campaignID"), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load campaign stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
