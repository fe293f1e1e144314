package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/storage"
	"github.com/go-chi/chi/v5"
)

// UploadsRouter streams stored objects back to clients.
func UploadsRouter(r chi.Router, store *storage.Storage) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if key == "" || strings.Contains(key, "..") {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}

		body, err := store.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "file not found")
				return
			}
			writeServiceError(w, r, err, "failed to read file")
			return
		}
		defer body.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", storage.CacheControl)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			logger.FromContext(r.Context()).WithError(err).WithField("key", key).Warn("failed to stream file")
		}
	})
}
