package uploads

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
)

// Handler serves blobs below URLPrefix. Backends implementing PublicStore are
// answered with a redirect.
func Handler(store Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if public, ok := store.(PublicStore); ok {
			target, err := public.PublicURL(r.URL.Path)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		rc, err := store.Open(r.Context(), r.URL.Path)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPath) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to read upload", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		if ct := mime.TypeByExtension(filepath.Ext(r.URL.Path)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = io.Copy(w, rc)
	})
}
