// ABOUTME: Bearer token authentication for the API and console routes.
// ABOUTME: Browsers authenticate once via /login?token=... which sets the pipeconf_token cookie.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const tokenCookie = "pipeconf_token"

// protectedPrefixes are the route trees that require a token.
var protectedPrefixes = []string{"/api/", "/admin/", "/console/"}

// AuthMiddleware validates a bearer token or session cookie on API and console
// routes. The home page, health check, login endpoint, and static assets are open.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	expected := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Home, health, login, and static assets stay open
			if !needsAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// Check Authorization header (API clients)
			auth := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			// Check cookie (browser sessions)
			if cookie, err := r.Cookie(tokenCookie); err == nil {
				if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(token)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			// HTMX requests and API calls get a JSON 401
			if r.Header.Get("HX-Request") == "true" ||
				strings.HasPrefix(r.URL.Path, "/api/") ||
				!strings.Contains(r.Header.Get("Accept"), "text/html") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(apiError{Message: "unauthorized"})
				return
			}
			// Browser navigation goes to the login prompt
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}

// needsAuth matches a protected prefix or its bare form, e.g. "/api".
func needsAuth(path string) bool {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) || path+"/" == prefix {
			return true
		}
	}
	return false
}

// handleLogin validates a token query parameter and sets the session cookie.
// Without a token it renders the login prompt.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	// No token yet: show the prompt
	if token == "" {
		s.renderStatus(w, http.StatusUnauthorized, "login.html", PageData{Title: "Sign in"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		s.renderStatus(w, http.StatusUnauthorized, "login.html", PageData{Title: "Sign in", Error: "Invalid token."})
		return
	}

	// Cookie lives for the browser session; Secure only when served over TLS
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
