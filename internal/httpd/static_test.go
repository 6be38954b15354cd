package httpd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFixture(t *testing.T) *StaticHandler {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":      "<html>home</html>",
		"about.html":      "<html>about</html>",
		"404.html":        "<html>lost</html>",
		"assets/app.js":   "console.log('hi')",
		"docs/index.html": "<html>docs</html>",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	return NewStaticHandler(zerolog.Nop(), root)
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://test.local/", nil)
	req.URL.Path = path
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStaticServesRootIndex(t *testing.T) {
	w := get(staticFixture(t), "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "home")
}

func TestStaticAppendsHTMLExtension(t *testing.T) {
	w := get(staticFixture(t), "/about")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "about")
}

func TestStaticServesDirectoryIndex(t *testing.T) {
	w := get(staticFixture(t), "/docs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docs")
}

func TestStaticHTMLFileBeatsSameNamedDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs.html"), []byte("from docs.html"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	h := NewStaticHandler(zerolog.Nop(), root)

	w := get(h, "/docs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "from docs.html")
}

func TestStaticAppendsHTMLToExtensionedPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md.html"), []byte("rendered readme"), 0644))
	h := NewStaticHandler(zerolog.Nop(), root)

	w := get(h, "/readme.md")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rendered readme")
}

func TestStaticExtensionedMissIs404(t *testing.T) {
	w := get(staticFixture(t), "/assets/missing.js")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "lost", "asset misses skip the custom page")
}

func TestStaticUnknownRouteServesCustom404(t *testing.T) {
	w := get(staticFixture(t), "/no/such/route")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "lost")
}

func TestStaticFallsBackToIndexWithout404Page(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("spa"), 0644))
	h := NewStaticHandler(zerolog.Nop(), root)

	w := get(h, "/client/route")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "spa")
}

func TestStaticTraversalStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("spa"), 0644))
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))
	h := NewStaticHandler(zerolog.Nop(), root)

	w := get(h, "/../secret.txt")
	assert.NotEqual(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestStaticCacheHeaders(t *testing.T) {
	h := staticFixture(t)

	w := get(h, "/assets/app.js")
	assert.Equal(t, "public, max-age=31536000, immutable", w.Header().Get("Cache-Control"))

	w = get(h, "/")
	assert.Equal(t, "no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
}

func TestStaticIfModifiedSince(t *testing.T) {
	h := staticFixture(t)

	req := httptest.NewRequest(http.MethodGet, "http://test.local/assets/app.js", nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestStaticRejectsWriteMethods(t *testing.T) {
	h := staticFixture(t)
	req := httptest.NewRequest(http.MethodPost, "http://test.local/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
