package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"categorizer/internal/middleware/security"
)

// frontend serves the built single page app from dir. Paths that do not name
// a file fall back to index.html so client-side routes survive a reload.
func (s *Server) frontend(dir string) http.Handler {
	root := os.DirFS(dir)
	files := http.FileServer(http.FS(root))
	headers := security.NewHeadersMiddleware(security.FrontendHeadersConfig()).Middleware
	assets := security.StaticAssetMiddleware(3600)

	index := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, root, "index.html")
	})

	return headers(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			MethodNotAllowedError("GET, HEAD").Write(w)
			return
		}
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" || name == "index.html" {
			index.ServeHTTP(w, r)
			return
		}
		info, err := fs.Stat(root, name)
		switch {
		case err == nil && !info.IsDir():
			assets(files).ServeHTTP(w, r)
		case err == nil || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid):
			index.ServeHTTP(w, r)
		default:
			s.logger.WarnContext(r.Context(), "Frontend asset lookup failed", "path", name, "error", err)
			index.ServeHTTP(w, r)
		}
	}))
}
