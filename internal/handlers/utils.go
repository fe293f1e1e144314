package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/goccy/go-json"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	maxBodyBytes = 1 << 20
)

type contextKey string

const (
	contextSubjectKey contextKey = "sub"
	contextUserKey    contextKey = "user"
)

var exposeErrors atomic.Bool

// ExposeErrors controls whether 500 responses include the underlying error.
// Only enable it in development.
func ExposeErrors(on bool) {
	exposeErrors.Store(on)
}

// ErrorResponse is the error payload of every endpoint.
type ErrorResponse struct {
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// MessageResponse is returned by endpoints that have nothing else to say.
type MessageResponse struct {
	Message string `json:"message"`
}

// ListResponse is the paginated list payload.
type ListResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newListResponse[T any](items []T, page, limit, total int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return ListResponse[T]{Items: items, Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func userIDFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok {
		return "", errors.New("missing subject")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("invalid subject")
	}
	return subject, nil
}

// currentUser returns the user resolved by the auth middleware.
func currentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError maps a service error to its HTTP status. Unexpected
// errors are logged and answered with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "validation failed", Errors: verr.Fields})
		return
	}

	status := errorStatus(err)
	if status != http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}

	logger.FromContext(r.Context()).WithError(err).Error(fallback)
	resp := ErrorResponse{Message: fallback}
	if exposeErrors.Load() {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

var errorStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{
		services.ErrInvalidAmount,
		services.ErrInvalidEmail,
		services.ErrWeakPassword,
		services.ErrMissingFields,
		services.ErrInvalidCategory,
		services.ErrInvalidGoal,
		services.ErrDeadlineInPast,
		services.ErrInvalidRole,
		services.ErrInvalidDecision,
		services.ErrInvalidContactStatus,
		services.ErrEmptyComment,
		services.ErrCommentTooLong,
		services.ErrInvalidOTP,
		services.ErrInvalidResetToken,
		services.ErrIncorrectPassword,
		services.ErrCampaignNotAcceptingDonations,
		services.ErrCampaignExpired,
		services.ErrSelfDonation,
		services.ErrInvalidModerationState,
		services.ErrModerationNoteRequired,
		services.ErrLastAdmin,
		services.ErrInvalidContactTransition,
		services.ErrResponseRequired,
	}},
	{http.StatusUnauthorized, []error{
		services.ErrInvalidCredentials,
	}},
	{http.StatusForbidden, []error{
		services.ErrPasswordResetRequired,
		services.ErrForbidden,
		services.ErrSelfRoleChange,
		services.ErrCampaignHidden,
		services.ErrNotCommentOwner,
		services.ErrNotCampaignOwner,
		services.ErrCommentsClosed,
	}},
	{http.StatusNotFound, []error{
		services.ErrUserNotFound,
		services.ErrCampaignNotFound,
		services.ErrCommentNotFound,
		services.ErrContactNotFound,
	}},
	{http.StatusConflict, []error{
		services.ErrEmailTaken,
	}},
}

func errorStatus(err error) int {
	for _, group := range errorStatuses {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// decodeBody reads a JSON body, validates it against schemaID and decodes it
// into dst. On failure the error response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, v *validation.Validator, schemaID string, dst any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	if err := v.Validate(data, schemaID); err != nil {
		writeServiceError(w, r, err, "failed to validate request")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func queryBool(r *http.Request, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && value
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
