// ABOUTME: Browser console handlers: pipeline list, session creation, and htmx widget event routes.
// ABOUTME: Every event route applies one widget event and answers with the re-rendered widget fragment.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/store"
	"github.com/2389-research/pipeconf/widget"
)

// errorEvent is the htmx client event carrying an event failure message.
const errorEvent = "pipeconf:error"

func sessionBase(id string) string {
	return "/console/sessions/" + id
}

// handleHome lists the stored pipelines with links into the editor.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		log.Printf("component=console action=list err=%v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	data := PageData{Title: "Pipelines"}
	for _, rec := range recs {
		data.Pipelines = append(data.Pipelines, summarize(rec))
	}
	s.render(w, "home.html", data)
}

// handleEdit opens a configuration session for a pipeline and redirects to it.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if _, err := s.store.Get(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Printf("component=console action=edit pipeline=%s err=%v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	src := storeSource{store: s.store}
	wdg := widget.New(widget.Config{
		URL:    pipelineURL(name),
		Source: src,
		Saver:  src,
		Sealer: s.sealer,
	})
	// The fetch outlives this request.
	wdg.Mount(context.WithoutCancel(r.Context()))
	sess := s.sessions.Create(name, wdg)
	log.Printf("component=console action=open session=%s pipeline=%s", sess.ID, name)

	http.Redirect(w, r, sessionBase(sess.ID), http.StatusSeeOther)
}

// handleSession renders the full console page around the widget.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.renderStatus(w, http.StatusNotFound, "expired.html", PageData{Title: "Session expired"})
		return
	}
	var buf bytes.Buffer
	if err := sess.Widget.Render(&buf, widget.RenderOptions{ActionBase: sessionBase(sess.ID)}); err != nil {
		log.Printf("component=console action=render session=%s err=%v", sess.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "session.html", PageData{
		Title:   sess.Pipeline,
		Session: sess,
		Widget:  template.HTML(buf.String()),
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session) error

// withSession resolves the session, runs the event, and answers with the
// re-rendered fragment. Event errors are reported through an HX-Trigger event
// so the fragment still reflects the current model.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
		if !ok {
			w.Header().Set("HX-Redirect", "/")
			http.Error(w, "session expired", http.StatusGone)
			return
		}
		if err := h(w, r, sess); err != nil {
			var notFound notFoundError
			if errors.As(err, &notFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			log.Printf("component=console action=event session=%s path=%s err=%v", sess.ID, r.URL.Path, err)
			trigger, _ := json.Marshal(map[string]string{errorEvent: err.Error()})
			w.Header().Set("HX-Trigger", string(trigger))
		}
		s.renderFragment(w, sess)
	}
}

type notFoundError struct{ what string }

func (e notFoundError) Error() string { return e.what + " not found" }

func (s *Server) renderFragment(w http.ResponseWriter, sess *Session) {
	var buf bytes.Buffer
	if err := sess.Widget.Render(&buf, widget.RenderOptions{ActionBase: sessionBase(sess.ID)}); err != nil {
		log.Printf("component=console action=render session=%s err=%v", sess.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request, sess *Session) error {
	return nil
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, sess *Session) error {
	id, ok := widget.ParseSectionID(chi.URLParam(r, "section"))
	if !ok {
		return notFoundError{what: "section"}
	}
	return sess.Widget.ToggleSection(id)
}

func targetFromQuery(r *http.Request) widget.Target {
	q := r.URL.Query()
	return widget.Target{
		ModelType: widget.ModelType(q.Get("model_type")),
		PropName:  q.Get("prop_name"),
		Key:       q.Get("key"),
	}
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, sess *Session) error {
	return sess.Widget.Click(targetFromQuery(r))
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request, sess *Session) error {
	target := targetFromQuery(r)
	name := widget.InputName(target)
	if name == "" {
		return &widget.UnknownTargetError{Target: target}
	}
	return sess.Widget.Input(target, r.PostFormValue(name))
}

func (s *Server) handleAddParameter(w http.ResponseWriter, r *http.Request, sess *Session) error {
	return sess.Widget.AddParameter(r.PostFormValue("name"), r.PostFormValue("value"))
}

func (s *Server) handleRemoveParameter(w http.ResponseWriter, r *http.Request, sess *Session) error {
	return sess.Widget.RemoveParameter(pathParam(r, "param"))
}

func (s *Server) handleAddVariable(w http.ResponseWriter, r *http.Request, sess *Session) error {
	secure := r.PostFormValue("secure") == "true"
	return sess.Widget.AddVariable(r.PostFormValue("name"), r.PostFormValue("value"), secure)
}

func (s *Server) handleRemoveVariable(w http.ResponseWriter, r *http.Request, sess *Session) error {
	return sess.Widget.RemoveVariable(pathParam(r, "variable"))
}

// handleSave persists the session's model. Validation and conflict failures
// are shown by the widget itself, so only unexpected errors are raised.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess *Session) error {
	err := sess.Widget.Save(r.Context())
	var verr *pipeline.ValidationError
	if err == nil || errors.As(err, &verr) || errors.Is(err, widget.ErrConflict) {
		return nil
	}
	return err
}
