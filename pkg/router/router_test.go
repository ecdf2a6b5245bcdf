package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echo(body string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func do(t *testing.T, r *Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestExactMatch(t *testing.T) {
	r := New(zap.NewNop())
	r.GET("/api/v1/things", echo("list"))
	r.POST("/api/v1/things", echo("create"))

	rec := do(t, r, http.MethodGet, "/api/v1/things")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "list", rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/v1/things")
	require.Equal(t, "create", rec.Body.String())
}

func TestWildcardSegment(t *testing.T) {
	r := New(zap.NewNop())
	r.GET("/api/v1/things/*", echo("one"))
	r.GET("/api/v1/things/*/parts", echo("parts"))

	rec := do(t, r, http.MethodGet, "/api/v1/things/abc-123")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "one", rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/things/abc-123/parts")
	require.Equal(t, "parts", rec.Body.String())
}

func TestExactBeatsWildcard(t *testing.T) {
	r := New(zap.NewNop())
	r.GET("/api/v1/things/*", echo("wild"))
	r.GET("/api/v1/things/special", echo("special"))

	rec := do(t, r, http.MethodGet, "/api/v1/things/special")
	require.Equal(t, "special", rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/things/other")
	require.Equal(t, "wild", rec.Body.String())
}

func TestMostSpecificWildcardWins(t *testing.T) {
	r := New(zap.NewNop())
	r.GET("/api/v1/things/*", echo("one"))
	r.GET("/api/v1/things/*/parts", echo("parts"))

	// Both patterns match; the one with more literal segments wins,
	// regardless of registration order.
	for i := 0; i < 20; i++ {
		rec := do(t, r, http.MethodGet, "/api/v1/things/abc/parts")
		require.Equal(t, "parts", rec.Body.String())
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	r := New(zap.NewNop())
	r.GET("/api/v1/things", echo("list"))

	rec := do(t, r, http.MethodGet, "/api/v1/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodDelete, "/api/v1/things")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMountedPrefix(t *testing.T) {
	r := New(zap.NewNop())
	r.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("metrics: " + req.URL.Path))
	}))

	rec := do(t, r, http.MethodGet, "/metrics")
	require.Equal(t, "metrics: /metrics", rec.Body.String())

	rec = do(t, r, http.MethodGet, "/metrics/anything")
	require.Equal(t, "metrics: /metrics/anything", rec.Body.String())
}

func TestMatchWildcardRoute(t *testing.T) {
	cases := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/a/b/c", "/a/*/c", true},
		{"/a/b/d", "/a/*/c", false},
		{"/a/b", "/a/*", true},
		{"/a/b/c", "/a/*", true}, // trailing * matches the rest
		{"/a", "/a/*", true},    // including zero remaining segments
		{"/b", "/a/*", false},
		{"/a/b/c/d", "/a/*/c/*", true},
		{"/x/b/c", "/a/*/c", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, matchWildcardRoute(tc.path, tc.pattern), "%s vs %s", tc.path, tc.pattern)
	}
}
