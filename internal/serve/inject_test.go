package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveThroughInjector(t *testing.T, path string, inner http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	injectReloadScript(inner).ServeHTTP(rec, req)
	return rec
}

func TestInjectReloadScript_AddsTagBeforeBodyClose(t *testing.T) {
	rec := serveThroughInjector(t, "/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>hi</p></body></html>"))
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), scriptTag+"</body>")
}

func TestInjectReloadScript_SkipsAssetPaths(t *testing.T) {
	rec := serveThroughInjector(t, "/style.css", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("body{}</body>"))
	})

	require.Equal(t, "body{}</body>", rec.Body.String())
}

func TestInjectReloadScript_PassthroughNonHTMLContentType(t *testing.T) {
	rec := serveThroughInjector(t, "/data/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"body":"</body>"}`))
	})

	require.Equal(t, `{"body":"</body>"}`, rec.Body.String())
}

func TestInjectReloadScript_NoBodyTag_ServedUnchanged(t *testing.T) {
	rec := serveThroughInjector(t, "/fragment.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>partial</p>"))
	})

	require.Equal(t, "<p>partial</p>", rec.Body.String())
}

func TestInjectReloadScript_PreservesStatusCode(t *testing.T) {
	rec := serveThroughInjector(t, "/missing/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body>not found</body></html>"))
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), scriptTag)
}

func TestInjectReloadScript_EmptyResponse_HeaderStillWritten(t *testing.T) {
	rec := serveThroughInjector(t, "/empty/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
}
