// ABOUTME: Tests for bearer token and cookie authentication on API and console routes.
package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthOpenRoutes(t *testing.T) {
	srv := newTestServerWith(t, ServerConfig{AuthToken: "tok"})
	for _, path := range []string{"/", "/health", "/static/css/console.css"} {
		if rec := do(t, srv, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAuthAPIRequiresToken(t *testing.T) {
	srv := newTestServerWith(t, ServerConfig{AuthToken: "tok"})
	seedSample(t, srv)

	if rec := do(t, srv, http.MethodGet, "/api/admin/pipelines", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/admin/pipelines", "", map[string]string{"Authorization": "Bearer nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/admin/pipelines", "", map[string]string{"Authorization": "Bearer tok"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestAuthBrowserRedirectsToLogin(t *testing.T) {
	srv := newTestServerWith(t, ServerConfig{AuthToken: "tok"})
	seedSample(t, srv)

	rec := do(t, srv, http.MethodGet, "/admin/pipelines/yourproject/edit", "", map[string]string{"Accept": "text/html"})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginSetsCookie(t *testing.T) {
	srv := newTestServerWith(t, ServerConfig{AuthToken: "tok"})

	if rec := do(t, srv, http.MethodGet, "/login", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected login prompt with 401, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/login?token=bad", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", rec.Code)
	}

	rec := do(t, srv, http.MethodGet, "/login?token=tok", "", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != tokenCookie || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/pipelines", nil)
	req.AddCookie(cookies[0])
	authed := httptest.NewRecorder()
	srv.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Errorf("expected cookie to authenticate, got %d", authed.Code)
	}
}

func TestNeedsAuth(t *testing.T) {
	cases := map[string]bool{
		"/":                       false,
		"/health":                 false,
		"/static/js/console.js":   false,
		"/api/admin/pipelines":    true,
		"/api":                    true,
		"/console/sessions/abc":   true,
		"/admin/pipelines/x/edit": true,
	}
	for path, want := range cases {
		if got := needsAuth(path); got != want {
			t.Errorf("needsAuth(%q) = %v, want %v", path, got, want)
		}
	}
}
