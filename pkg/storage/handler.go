package storage

import (
	"errors"
	"io"
	"net/http"
	"path"
)

// Handler serves stored images by name. Mount it under PublicPrefix with the
// prefix stripped.
func Handler(store ImageStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Base(r.URL.Path)
		body, contentType, err := store.Open(r.Context(), name)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidName) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "storage unavailable", http.StatusBadGateway)
			return
		}
		defer body.Close() //nolint:errcheck

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = io.Copy(w, body)
	})
}
