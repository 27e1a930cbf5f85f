// ABOUTME: pipeconf HTTP server: pipeline JSON API and the browser configuration console behind one chi router.
// ABOUTME: Console sessions wrap a widget bound to the store; API writes use ETag / If-Match concurrency.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/store"
)

// Server serves the pipeline API and console.
type Server struct {
	store     store.Store
	sessions  *SessionStore
	templates *TemplateEngine
	router    chi.Router
	addr      string
	authToken string
	sealer    pipeline.Sealer

	stopCleanup func()
}

// ServerConfig holds the configuration for the web server.
type ServerConfig struct {
	Addr        string          // listen address (default DefaultBind)
	Store       store.Store     // pipeline repository, required
	Sealer      pipeline.Sealer // seals plaintext secure values, optional
	AuthToken   string          // bearer token; empty disables authentication
	MaxSessions int             // console session capacity (default 200)
	SessionTTL  time.Duration   // idle console session lifetime (default 12h)
}

// NewServer creates a Server and starts its session cleanup loop. Call Close
// to stop it.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("Store must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultBind
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 200
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}

	tmpl, err := NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("initializing templates: %w", err)
	}

	s := &Server{
		store:     cfg.Store,
		sessions:  NewSessionStore(cfg.MaxSessions, cfg.SessionTTL),
		templates: tmpl,
		addr:      cfg.Addr,
		authToken: cfg.AuthToken,
		sealer:    cfg.Sealer,
	}
	s.stopCleanup = s.sessions.StartCleanup(10 * time.Minute)
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work.
func (s *Server) Close() {
	s.stopCleanup()
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("component=web action=listen addr=%s auth=%t", s.addr, s.authToken != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.authToken != "" {
		r.Use(AuthMiddleware(s.authToken))
		r.Get("/login", s.handleLogin)
	}

	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)

	staticFS, err := fs.Sub(StaticFS, "static")
	if err != nil {
		log.Printf("component=web action=static err=%v", err)
	} else {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	r.Route(apiPipelinesPath, func(r chi.Router) {
		r.Get("/", s.handleAPIList)
		r.Post("/", s.handleAPICreate)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleAPIGet)
			r.Put("/", s.handleAPIPut)
			r.Delete("/", s.handleAPIDelete)
			r.Get("/history", s.handleAPIHistory)
		})
	})

	r.Get("/admin/pipelines/{name}/edit", s.handleEdit)

	r.Route("/console/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Get("/widget", s.withSession(s.handleWidget))
		r.Post("/sections/{section}/toggle", s.withSession(s.handleToggle))
		r.Post("/click", s.withSession(s.handleClick))
		r.Post("/input", s.withSession(s.handleInput))
		r.Post("/parameters", s.withSession(s.handleAddParameter))
		r.Post("/parameters/{param}/delete", s.withSession(s.handleRemoveParameter))
		r.Post("/variables", s.withSession(s.handleAddVariable))
		r.Post("/variables/{variable}/delete", s.withSession(s.handleRemoveVariable))
		r.Post("/save", s.withSession(s.handleSave))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathParam returns a decoded chi URL parameter. chi matches against the raw
// path when one is present, so escaped names arrive still escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=web action=encode err=%v", err)
	}
}
