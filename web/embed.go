// Package web embeds the advisor chat page and serves it.
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

const indexFile = "index.html"

// SPAHandler serves the chat page. Routes without a file extension get
// index.html so the page can own its client-side paths. Missing assets and
// anything under /api/ answer 404 rather than the page.
func SPAHandler() http.Handler {
	site, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist missing from embedded files: " + err.Error())
	}
	index, err := fs.ReadFile(site, indexFile)
	if err != nil {
		panic("web: embedded " + indexFile + " unreadable: " + err.Error())
	}
	assets := http.FileServer(http.FS(site))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

		switch {
		case name == "api" || strings.HasPrefix(name, "api/"):
			http.NotFound(w, r)
		case name == "" || name == indexFile:
			serveIndex(w, index)
		case isFile(site, name):
			assets.ServeHTTP(w, r)
		case path.Ext(name) != "":
			http.NotFound(w, r)
		default:
			serveIndex(w, index)
		}
	})
}

func serveIndex(w http.ResponseWriter, index []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(index)
}

func isFile(site fs.FS, name string) bool {
	info, err := fs.Stat(site, name)
	return err == nil && !info.IsDir()
}
