package handlers

import (
	"net/http"

	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// DonationHandler serves the campaign-independent donation endpoint. It
// shares DonationService.Donate with POST /campaigns/{id}/donate.
type DonationHandler struct {
	donationService *services.DonationService
	validator       *validation.Validator
}

func NewDonationHandler(donationService *services.DonationService, v *validation.Validator) *DonationHandler {
	return &DonationHandler{donationService: donationService, validator: v}
}

// DonationRouter registers donation routes on the given router.
func DonationRouter(r chi.Router, donationService *services.DonationService, v *validation.Validator, auth *Auth) {
	handler := NewDonationHandler(donationService, v)

	r.With(auth.Required).Post("/donate", handler.Donate)
}

func (h *DonationHandler) Donate(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req DirectDonationRequest
	if !decodeBody(w, r, h.validator, validation.DonationDirect, &req) {
		return
	}

	receipt, err := h.donationService.Donate(r.Context(), req.CampaignID, userID, req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "failed to process donation")
		return
	}
	writeJSON(w, http.StatusCreated, newDonationResponse(receipt))
}

type DirectDonationRequest struct {
	CampaignID string  `json:"campaignId"`
	Amount     float64 `json:"amount"`
}

type DonationResponse struct {
	Message  string             `json:"message"`
	Donation types.Donation     `json:"donation"`
	Campaign types.CampaignView `json:"campaign"`
}

func newDonationResponse(receipt services.DonationReceipt) DonationResponse {
	message := "donation successful"
	if receipt.Campaign.Status == types.CampaignCompleted {
		message = "donation successful, the campaign has reached its goal"
	}
	return DonationResponse{Message: message, Donation: receipt.Donation, Campaign: receipt.Campaign}
}
