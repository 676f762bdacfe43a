// Package web holds the browser chat page. The page is plain HTML with
// inline script and needs no build step.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// ChatPage serves the embedded player page. Requests naming an embedded
// asset get that file; every other path gets index.html, which opens the
// /ws/play socket on its own.
func ChatPage() http.Handler {
	assets, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist missing from embed: " + err.Error())
	}
	files := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if isAsset(assets, name) {
			files.ServeHTTP(w, r)
			return
		}
		// The page embeds its own script, so a stale copy means a stale client.
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, assets, "index.html")
	})
}

func isAsset(assets fs.FS, name string) bool {
	if name == "" || name == "index.html" {
		return false
	}
	info, err := fs.Stat(assets, name)
	return err == nil && !info.IsDir()
}
