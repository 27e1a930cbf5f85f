// ABOUTME: Tests for HTTPSource against an httptest server speaking the pipeline JSON API.
// ABOUTME: Covers bearer auth, ETag capture, If-Match saves, conflicts, and validation errors.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/pipeline/pipelinetest"
)

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, pipelinetest.SampleJSON)
	}))
	defer srv.Close()

	src := &HTTPSource{Token: "s3cret"}
	doc, err := src.Fetch(context.Background(), srv.URL+"/api/admin/pipelines/yourproject")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.ETag != `"abc"` {
		t.Errorf("etag = %q", doc.ETag)
	}
	if doc.Pipeline.Name() != "yourproject" {
		t.Errorf("name = %q", doc.Pipeline.Name())
	}
}

func TestHTTPSourceFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"pipeline not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := (&HTTPSource{}).Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestHTTPSourceSave(t *testing.T) {
	var ifMatch string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		ifMatch = r.Header.Get("If-Match")
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"next"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := pipelinetest.Sample(t)
	etag, err := (&HTTPSource{}).Save(context.Background(), srv.URL, p, `"prev"`)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if etag != `"next"` {
		t.Errorf("etag = %q", etag)
	}
	if ifMatch != `"prev"` {
		t.Errorf("If-Match = %q", ifMatch)
	}
	decoded, err := pipeline.Decode(body)
	if err != nil {
		t.Fatalf("server received undecodable body: %v", err)
	}
	if decoded.LabelTemplate() != p.LabelTemplate() {
		t.Errorf("label = %q", decoded.LabelTemplate())
	}
}

func TestHTTPSourceSaveErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusPreconditionFailed)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		code := int(status.Load())
		w.WriteHeader(code)
		if code == http.StatusUnprocessableEntity {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": "invalid pipeline config",
				"errors":  map[string][]string{"label_template": {"must contain a token"}},
			})
		}
	}))
	defer srv.Close()
	src := &HTTPSource{}
	p := pipelinetest.Sample(t)

	if _, err := src.Save(context.Background(), srv.URL, p, `"x"`); !errors.Is(err, ErrConflict) {
		t.Errorf("412: expected ErrConflict, got %v", err)
	}

	status.Store(http.StatusUnprocessableEntity)
	_, err := src.Save(context.Background(), srv.URL, p, `"x"`)
	var verr *pipeline.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("422: expected ValidationError, got %v", err)
	}
	if len(verr.Fields["label_template"]) != 1 {
		t.Errorf("fields = %v", verr.Fields)
	}

	status.Store(http.StatusInternalServerError)
	var se *StatusError
	if _, err := src.Save(context.Background(), srv.URL, p, `"x"`); !errors.As(err, &se) {
		t.Errorf("500: expected StatusError, got %v", err)
	}
}

func TestNewUsesSourceAsSaver(t *testing.T) {
	w := New(Config{URL: "http://example.invalid", Source: &HTTPSource{}})
	if w.cfg.Saver == nil {
		t.Fatal("expected HTTPSource to double as the saver")
	}
}
