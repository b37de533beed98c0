package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	ViewGenerate = "generate"
	ViewMyVideos = "my-videos"
	ViewAccount  = "account"
)

// ViewForPath resolves a browser path to one of the SPA views. The root path
// opens the generator.
func ViewForPath(path string) (string, bool) {
	switch strings.Trim(path, "/") {
	case "", ViewGenerate:
		return ViewGenerate, true
	case ViewMyVideos:
		return ViewMyVideos, true
	case ViewAccount:
		return ViewAccount, true
	}
	return "", false
}

func (s *Server) mountViews(r chi.Router) {
	shell := http.HandlerFunc(s.serveShell)
	for _, p := range []string{"/", "/" + ViewGenerate, "/" + ViewMyVideos, "/" + ViewAccount} {
		r.Get(p, shell)
	}

	assets := http.FileServer(http.Dir(s.Config.StaticDir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ViewForPath(r.URL.Path); ok {
			s.serveShell(w, r)
			return
		}
		assets.ServeHTTP(w, r)
	})
}

func (s *Server) serveShell(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.Config.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeMessage(w, http.StatusNotFound, "frontend build not found, set STATIC_DIR")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
