package httpd

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StaticHandler serves the built frontend from a directory with the
// resolution order single-page hosting expects: exact file, then the
// path with .html appended, then a directory index, then the custom 404
// page, then the SPA entry point.
type StaticHandler struct {
	log  zerolog.Logger
	root string
}

// NewStaticHandler serves files rooted at root.
func NewStaticHandler(log zerolog.Logger, root string) *StaticHandler {
	return &StaticHandler{
		log:  log.With().Str("component", "static").Logger(),
		root: root,
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqPath := r.URL.Path
	if reqPath == "/" {
		reqPath = "/index.html"
	}

	target, ok := h.resolve(reqPath)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if target != "" {
		h.serveFile(w, r, target, http.StatusOK)
		return
	}

	// An extensioned miss is a real missing asset, not a route.
	if ext := filepath.Ext(reqPath); ext != "" && ext != ".html" {
		http.NotFound(w, r)
		return
	}

	if notFound, ok := h.resolve("/404.html"); ok && notFound != "" {
		h.serveFile(w, r, notFound, http.StatusNotFound)
		return
	}
	if index, ok := h.resolve("/index.html"); ok && index != "" {
		h.serveFile(w, r, index, http.StatusOK)
		return
	}
	http.NotFound(w, r)
}

// resolve maps a request path to a file on disk. Returns ok=false when
// the path escapes the root, and an empty target when nothing matched.
func (h *StaticHandler) resolve(reqPath string) (string, bool) {
	clean := filepath.Clean("/" + reqPath)
	target := filepath.Join(h.root, clean)

	rootAbs, err := filepath.Abs(h.root)
	if err != nil {
		return "", false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	if targetAbs != rootAbs && !strings.HasPrefix(targetAbs, rootAbs+string(filepath.Separator)) {
		return "", false
	}

	// Exact file, then the path with ".html" appended (even for paths
	// that already carry an extension), then a directory index.
	if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
		return target, true
	}
	withExt := target + ".html"
	if fi, err := os.Stat(withExt); err == nil && !fi.IsDir() {
		return withExt, true
	}
	index := filepath.Join(target, "index.html")
	if fi, err := os.Stat(index); err == nil && !fi.IsDir() {
		return index, true
	}
	return "", true
}

func (h *StaticHandler) serveFile(w http.ResponseWriter, r *http.Request, path string, status int) {
	fi, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	isHTML := strings.HasSuffix(path, ".html")
	if isHTML {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	w.Header().Set("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))

	if ims := r.Header.Get("If-Modified-Since"); ims != "" && status == http.StatusOK {
		if t, err := http.ParseTime(ims); err == nil && !fi.ModTime().Truncate(time.Second).After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if status != http.StatusOK {
		if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			io.Copy(w, f)
		}
		return
	}
	http.ServeContent(w, r, path, fi.ModTime(), f)
}
