// ABOUTME: JSON API for pipeline configs under /api/admin/pipelines.
// ABOUTME: GET returns an ETag; PUT requires If-Match (428 without, 412 on mismatch, 422 on invalid).
package web

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/store"
)

const maxBodyBytes = 1 << 20

// apiError is the JSON error body of every non-2xx API response.
type apiError struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type pipelineSummary struct {
	Name          string    `json:"name"`
	LabelTemplate string    `json:"label_template"`
	TemplateName  *string   `json:"template_name"`
	Locked        bool      `json:"enable_pipeline_locking"`
	ETag          string    `json:"etag"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func summarize(rec store.Record) pipelineSummary {
	sum := pipelineSummary{
		Name:          rec.Pipeline.Name(),
		LabelTemplate: rec.Pipeline.LabelTemplate(),
		Locked:        rec.Pipeline.EnablePipelineLocking(),
		ETag:          rec.ETag,
		UpdatedAt:     rec.UpdatedAt,
	}
	if t, ok := rec.Pipeline.TemplateName(); ok {
		sum.TemplateName = &t
	}
	return sum
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Message: msg})
}

// writeStoreError maps store and model errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, "pipeline not found")
	case errors.Is(err, store.ErrAlreadyExists):
		writeAPIError(w, http.StatusConflict, "pipeline already exists")
	case errors.Is(err, store.ErrPreconditionFailed):
		writeAPIError(w, http.StatusPreconditionFailed, "pipeline was modified; fetch it again to get the current ETag")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Message: "invalid pipeline config", Errors: verr.Fields})
	default:
		log.Printf("component=web action=api err=%v", err)
		writeAPIError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeDocument(w http.ResponseWriter, status int, rec store.Record) {
	data, err := pipeline.Encode(rec.Pipeline)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", rec.ETag)
	w.Header().Set("Last-Modified", rec.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// decodeBody reads and decodes a pipeline document from the request body.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (*pipeline.Pipeline, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	var opts []pipeline.DecodeOption
	if s.sealer != nil {
		opts = append(opts, pipeline.WithSealer(s.sealer))
	}
	p, err := pipeline.Decode(data, opts...)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("invalid pipeline document: %v", err))
		return nil, false
	}
	return p, true
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]pipelineSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": out})
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	if err := pipeline.Validate(p); err != nil {
		writeStoreError(w, err)
		return
	}
	rec, err := s.store.Create(r.Context(), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	log.Printf("component=web action=create pipeline=%s etag=%s", p.Name(), rec.ETag)
	w.Header().Set("Location", pipelineURL(p.Name()))
	writeDocument(w, http.StatusCreated, rec)
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), pathParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == rec.ETag {
		w.Header().Set("ETag", rec.ETag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeDocument(w, http.StatusOK, rec)
}

func (s *Server) handleAPIPut(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		writeAPIError(w, http.StatusPreconditionRequired, "If-Match header is required")
		return
	}
	p, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	if p.Name() != name {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("document name %q does not match %q; pipelines cannot be renamed", p.Name(), name))
		return
	}
	if err := pipeline.Validate(p); err != nil {
		writeStoreError(w, err)
		return
	}
	rec, err := s.store.Put(r.Context(), p, ifMatch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	log.Printf("component=web action=update pipeline=%s etag=%s", name, rec.ETag)
	writeDocument(w, http.StatusOK, rec)
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if err := s.store.Delete(r.Context(), name, r.Header.Get("If-Match")); err != nil {
		writeStoreError(w, err)
		return
	}
	log.Printf("component=web action=delete pipeline=%s", name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := s.store.History(r.Context(), pathParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}
