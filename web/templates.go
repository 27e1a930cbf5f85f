// ABOUTME: TemplateEngine loads embedded console page templates and renders them inside the layout.
// ABOUTME: Templates are embedded at compile time via go:embed.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData holds all data passed to console page templates.
type PageData struct {
	Title     string
	Error     string
	Pipelines []pipelineSummary
	Session   *Session
	Widget    template.HTML
}

// TemplateEngine renders console pages.
type TemplateEngine struct {
	templates map[string]*template.Template
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"lower":   strings.ToLower,
		"timeAgo": timeAgo,
		"editURL": func(name string) string { return "/admin/pipelines/" + url.PathEscape(name) + "/edit" },
	}
}

// NewTemplateEngine parses every page together with the layout.
func NewTemplateEngine() (*TemplateEngine, error) {
	funcs := templateFuncs()
	pages := []string{"home.html", "session.html", "login.html", "expired.html"}

	engine := &TemplateEngine{templates: make(map[string]*template.Template)}
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(
			templateFS,
			"templates/layout.html",
			"templates/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		engine.templates[page] = t
	}
	return engine, nil
}

// RenderTo executes the named page inside the layout.
func (e *TemplateEngine) RenderTo(w io.Writer, name string, data any) error {
	t, ok := e.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data PageData) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data PageData) {
	var buf strings.Builder
	if err := s.templates.RenderTo(&buf, name, data); err != nil {
		log.Printf("component=web action=render template=%s err=%v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, buf.String())
}

// timeAgo formats a time as a short relative duration.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
