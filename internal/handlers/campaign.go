package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

// CampaignHandler provides HTTP handlers for campaigns, their donations and
// their comments.
type CampaignHandler struct {
	campaignService *services.CampaignService
	donationService *services.DonationService
	commentService  *services.CommentService
	validator       *validation.Validator
}

// NewCampaignHandler constructs a handler with the provided services.
func NewCampaignHandler(
	campaignService *services.CampaignService,
	donationService *services.DonationService,
	commentService *services.CommentService,
	v *validation.Validator,
) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		donationService: donationService,
		commentService:  commentService,
		validator:       v,
	}
}

// CampaignRouter registers campaign routes on the given router.
func CampaignRouter(
	r chi.Router,
	campaignService *services.CampaignService,
	donationService *services.DonationService,
	commentService *services.CommentService,
	v *validation.Validator,
	auth *Auth,
) {
	handler := NewCampaignHandler(campaignService, donationService, commentService, v)

	r.With(auth.Optional).Get("/", handler.ListCampaigns)
	r.With(auth.Required).Post("/create", handler.CreateCampaign)
	r.With(auth.Required).Delete("/comments/{commentID}", handler.DeleteComment)
	r.Route("/{campaignID}", func(r chi.Router) {
		r.With(auth.Optional).Get("/", handler.GetCampaign)
		r.With(auth.Required).Post("/donate", handler.Donate)
		r.With(auth.Optional).Get("/comments", handler.ListComments)
		r.With(auth.Required).Post("/comments", handler.AddComment)
	})
}

func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	q := services.PublicQuery{
		Category:     query.Get("category"),
		Search:       query.Get("search"),
		Completed:    strings.EqualFold(query.Get("status"), types.CampaignCompleted) || queryBool(r, "includeCompleted"),
		NeedsFunding: queryBool(r, "needsFunding"),
		SortUrgency:  strings.EqualFold(query.Get("sort"), "urgency"),
		Offset:       offset,
		Limit:        limit,
	}

	items, total, err := h.campaignService.ListPublic(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := userIDFromContext(r.Context())
	campaign, err := h.campaignService.Get(r.Context(), chi.URLParam(r, "campaignID"), viewerID)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch campaign")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CampaignCreateRequest
	if !decodeBody(w, r, h.validator, validation.CampaignCreate, &req) {
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: "validation failed",
			Errors:  []validation.FieldError{{Field: "deadline", Message: err.Error()}},
		})
		return
	}

	created, err := h.campaignService.Create(r.Context(), userID, services.CampaignInput{
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		GoalAmount:          req.GoalAmount,
		Deadline:            deadline,
		FundUtilizationPlan: req.FundUtilizationPlan,
		MediaURLs:           req.MediaURLs,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create campaign")
		return
	}

	message := "campaign submitted for review"
	if created.Status == types.CampaignApproved {
		message = "campaign created and approved"
	}
	writeJSON(w, http.StatusCreated, CampaignResponse{Message: message, Campaign: created})
}

func (h *CampaignHandler) Donate(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req DonationRequest
	if !decodeBody(w, r, h.validator, validation.Donation, &req) {
		return
	}

	receipt, err := h.donationService.Donate(r.Context(), chi.URLParam(r, "campaignID"), userID, req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "failed to process donation")
		return
	}
	writeJSON(w, http.StatusCreated, newDonationResponse(receipt))
}

func (h *CampaignHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := userIDFromContext(r.Context())
	comments, err := h.commentService.List(r.Context(), chi.URLParam(r, "campaignID"), viewerID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CampaignHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CommentRequest
	if !decodeBody(w, r, h.validator, validation.Comment, &req) {
		return
	}

	comment, err := h.commentService.Add(r.Context(), chi.URLParam(r, "campaignID"), userID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CampaignHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.commentService.Delete(r.Context(), chi.URLParam(r, "commentID"), userID); err != nil {
		writeServiceError(w, r, err, "failed to delete comment")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "comment deleted"})
}

// CampaignCreateRequest is the body of POST /campaigns/create.
type CampaignCreateRequest struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Category            string   `json:"category"`
	GoalAmount          float64  `json:"goalAmount"`
	Deadline            string   `json:"deadline"`
	FundUtilizationPlan string   `json:"fundUtilizationPlan"`
	MediaURLs           []string `json:"mediaUrls,omitempty"`
}

type CampaignResponse struct {
	Message  string             `json:"message"`
	Campaign types.CampaignView `json:"campaign"`
}

type DonationRequest struct {
	Amount float64 `json:"amount"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

// parseDeadline accepts RFC 3339 timestamps and plain dates. A plain date
// means the end of that day in UTC.
func parseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.Add(24*time.Hour - time.Second), nil
	}
	return time.Time{}, errors.New("must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
}
