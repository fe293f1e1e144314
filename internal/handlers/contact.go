package handlers

import (
	"net/http"

	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ContactHandler serves the contact form and the admin triage queue.
type ContactHandler struct {
	contactService *services.ContactService
	validator      *validation.Validator
}

func NewContactHandler(contactService *services.ContactService, v *validation.Validator) *ContactHandler {
	return &ContactHandler{contactService: contactService, validator: v}
}

// ContactRouter registers contact routes on the given router. Submissions
// are rate limited per client address when limiter is set.
func ContactRouter(r chi.Router, contactService *services.ContactService, v *validation.Validator, auth *Auth, limiter *cache.Limiter) {
	handler := NewContactHandler(contactService, v)

	r.With(append(limited(limiter), auth.Optional)...).Post("/", handler.Submit)
	r.With(auth.Required).Get("/user/messages", handler.UserMessages)

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireCapability(services.CapTriageContacts))
		r.Get("/", handler.List)
		r.Get("/stats", handler.Stats)
		r.Get("/{contactID}", handler.Get)
		r.Put("/{contactID}", handler.Update)
	})
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decodeBody(w, r, h.validator, validation.Contact, &req) {
		return
	}
	userID, _ := userIDFromContext(r.Context())

	contact, err := h.contactService.Submit(r.Context(), services.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		UserID:  userID,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, ContactResponse{
		Message: "message sent, we will get back to you soon",
		ID:      contact.ID,
	})
}

func (h *ContactHandler) UserMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.contactService.ListForUser(r.Context(), userID, offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, UserMessagesResponse{
		ListResponse:  newListResponse(messages.Messages, page, limit, messages.Total),
		HasUnread:     messages.HasUnread,
		HasInProgress: messages.HasInProgress,
	})
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.contactService.List(r.Context(), r.URL.Query().Get("status"), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *ContactHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.contactService.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to load message stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	contact, err := h.contactService.Get(r.Context(), chi.URLParam(r, "contactID"))
	if err != nil {
		writeServiceError(w, r, err, "failed to load message")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	adminID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ContactUpdateRequest
	if !decodeBody(w, r, h.validator, validation.ContactUpdate, &req) {
		return
	}

	updated, err := h.contactService.UpdateStatus(r.Context(), chi.URLParam(r, "contactID"), adminID, services.ContactUpdate{
		Status:        req.Status,
		AdminResponse: req.AdminResponse,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to update message")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactUpdateRequest leaves absent fields untouched.
type ContactUpdateRequest struct {
	Status        *string `json:"status,omitempty"`
	AdminResponse *string `json:"adminResponse,omitempty"`
}

type ContactResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type UserMessagesResponse struct {
	ListResponse[types.Contact]
	HasUnread     bool `json:"hasUnread"`
	HasInProgress bool `json:"hasInProgress"`
}
