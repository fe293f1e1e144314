package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/storage"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/go-chi/chi/v5"
)

const (
	maxAvatarBytes     = 5 << 20
	maxMultipartMemory = 8 << 20
	formFieldAvatar    = "avatar"
	sniffLen           = 512
)

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// UserHandler serves the signed in user's profile and avatar.
type UserHandler struct {
	userService *services.UserService
	storage     *storage.Storage
	validator   *validation.Validator
}

func NewUserHandler(userService *services.UserService, store *storage.Storage, v *validation.Validator) *UserHandler {
	return &UserHandler{userService: userService, storage: store, validator: v}
}

// UserRouter registers profile routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, store *storage.Storage, v *validation.Validator, auth *Auth) {
	handler := NewUserHandler(userService, store, v)

	r.Use(auth.Required)
	r.Get("/profile", handler.GetProfile)
	r.Put("/profile", handler.UpdateProfile)
	r.Post("/avatar", handler.UploadAvatar)
	r.Delete("/avatar", handler.DeleteAvatar)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProfileUpdateRequest
	if !decodeBody(w, r, h.validator, validation.ProfileUpdate, &req) {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), userID, services.ProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UploadAvatar stores a new avatar image and removes the one it replaces.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+(1<<20))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "avatar must be 5 MB or smaller")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar must be 5 MB or smaller")
		return
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "failed to read avatar")
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !avatarTypes[contentType] {
		writeError(w, http.StatusBadRequest, "avatar must be a JPEG, PNG or WebP image")
		return
	}

	url, err := h.storage.PutAvatar(r.Context(), userID, io.MultiReader(bytes.NewReader(head), file), header.Size, contentType)
	if err != nil {
		writeServiceError(w, r, err, "failed to store avatar")
		return
	}

	updated, previous, err := h.userService.SetAvatar(r.Context(), userID, url)
	if err != nil {
		h.removeObject(r, url)
		writeServiceError(w, r, err, "failed to update avatar")
		return
	}
	if previous != "" && previous != url {
		h.removeObject(r, previous)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	updated, previous, err := h.userService.SetAvatar(r.Context(), userID, "")
	if err != nil {
		writeServiceError(w, r, err, "failed to remove avatar")
		return
	}
	if previous != "" {
		h.removeObject(r, previous)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) removeObject(r *http.Request, url string) {
	if err := h.storage.DeleteURL(r.Context(), url); err != nil {
		logger.FromContext(r.Context()).WithError(err).WithField("url", url).Warn("failed to delete avatar object")
	}
}

type ProfileUpdateRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
