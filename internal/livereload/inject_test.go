package livereload

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertScript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"before closing body", "<html><body><p>x</p></body></html>", "<html><body><p>x</p>" + ScriptTag + "</body></html>"},
		{"uppercase tag", "<HTML><BODY>x</BODY></HTML>", "<HTML><BODY>x" + ScriptTag + "</BODY></HTML>"},
		{"body text in script ignored", "<body><script>var s = '</body>';</script></body>", "<body><script>var s = '</body>';</script>" + ScriptTag + "</body>"},
		{"no body appends", "<p>fragment</p>", "<p>fragment</p>" + ScriptTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(InsertScript([]byte(tt.in))))
		})
	}
}

func TestInject_HTML(t *testing.T) {
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", "27")
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, ScriptTag+"</body>"))
	n, err := strconv.Atoi(rec.Header().Get("Content-Length"))
	require.NoError(t, err)
	assert.Equal(t, len(body), n)
}

func TestInject_NonHTMLPath(t *testing.T) {
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("body{}</body>"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/styles/main.css", nil))
	assert.Equal(t, "body{}</body>", rec.Body.String())
}

func TestInject_NonHTMLContentType(t *testing.T) {
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"a":"</body>"}`))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, `{"a":"</body>"}`, rec.Body.String())
}

func TestInject_ErrorStatusPassesThrough(t *testing.T) {
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<body>404</body>"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "<body>404</body>", rec.Body.String())
}

func TestInject_LargeBodyPassesThrough(t *testing.T) {
	big := "<body>" + strings.Repeat("x", MaxInjectSize) + "</body>"
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(big[:100]))
		_, _ = w.Write([]byte(big[100:]))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/big.html", nil))
	assert.Equal(t, big, rec.Body.String())
}

func TestInject_EmptyBody(t *testing.T) {
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
