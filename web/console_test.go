// ABOUTME: Tests for the console flow: opening a session, htmx widget events, and saving to the store.
// ABOUTME: Fragments are parsed with golang.org/x/net/html and queried by data-* attributes.
package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/pipeconf/domtest"
	"github.com/2389-research/pipeconf/widget"
)

func openSession(t *testing.T, srv *Server, name string) *Session {
	t.Helper()
	rec := do(t, srv, http.MethodGet, "/admin/pipelines/"+name+"/edit", "", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	id := strings.TrimPrefix(loc, "/console/sessions/")
	if id == loc || id == "" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	sess, ok := srv.sessions.Get(id)
	if !ok {
		t.Fatalf("session %s not registered", id)
	}
	select {
	case <-sess.Widget.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the widget to load")
	}
	return sess
}

func htmxPost(t *testing.T, srv *Server, target string, form url.Values) *domtest.Doc {
	t.Helper()
	headers := map[string]string{"HX-Request": "true", "Content-Type": "application/x-www-form-urlencoded"}
	rec := do(t, srv, http.MethodPost, target, form.Encode(), headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST %s: expected 200, got %d: %s", target, rec.Code, rec.Body.String())
	}
	if trig := rec.Header().Get("HX-Trigger"); trig != "" {
		t.Fatalf("POST %s: unexpected error trigger %s", target, trig)
	}
	return domtest.ParseString(t, rec.Body.String())
}

func TestConsoleEditUnknownPipeline(t *testing.T) {
	srv := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/admin/pipelines/ghost/edit", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestConsoleSessionPage(t *testing.T) {
	srv := newTestServer(t)
	seedSample(t, srv)
	sess := openSession(t, srv, "yourproject")

	rec := do(t, srv, http.MethodGet, "/console/sessions/"+sess.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := domtest.ParseString(t, rec.Body.String())
	h1 := domtest.OneIn(t, doc.One(domtest.Class("heading")), domtest.Tag("h1"))
	if got := domtest.Text(h1); got != "Pipeline configuation for pipeline yourproject" {
		t.Errorf("heading = %q", got)
	}
	domtest.OneIn(t, doc.One(domtest.Class("console-session")), domtest.Class("pipeline"))
}

func TestConsoleUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/console/sessions/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 page, got %d", rec.Code)
	}
	rec := do(t, srv, http.MethodPost, "/console/sessions/nope/click", "", nil)
	if rec.Code != http.StatusGone || rec.Header().Get("HX-Redirect") != "/" {
		t.Errorf("expected 410 with HX-Redirect, got %d %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
}

func TestConsoleEditAndSave(t *testing.T) {
	srv := newTestServer(t)
	stored := seedSample(t, srv)
	sess := openSession(t, srv, "yourproject")
	base := "/console/sessions/" + sess.ID

	doc := htmxPost(t, srv, base+"/sections/settings/toggle", nil)
	box := domtest.OneIn(t, doc.Root(), domtest.Tag("input"),
		domtest.AttrIs("data-model-type", "pipeline"), domtest.AttrIs("data-prop-name", "enablePipelineLocking"))
	if _, checked := domtest.Attr(box, "checked"); !checked {
		t.Fatal("expected locking checkbox checked")
	}
	click, _ := domtest.Attr(box, "hx-post")

	doc = htmxPost(t, srv, click, nil)
	box = domtest.OneIn(t, doc.Root(), domtest.Tag("input"),
		domtest.AttrIs("data-model-type", "pipeline"), domtest.AttrIs("data-prop-name", "enablePipelineLocking"))
	if _, checked := domtest.Attr(box, "checked"); checked {
		t.Fatal("expected locking checkbox unchecked after click")
	}

	label := domtest.OneIn(t, doc.Root(), domtest.Tag("input"), domtest.AttrIs("data-prop-name", "labelTemplate"))
	inputURL, _ := domtest.Attr(label, "hx-post")
	name, _ := domtest.Attr(label, "name")
	htmxPost(t, srv, inputURL, url.Values{name: {"2.0.${COUNT}"}})

	htmxPost(t, srv, base+"/sections/parameters/toggle", nil)
	doc = htmxPost(t, srv, base+"/parameters", url.Values{"name": {"TARGET"}, "value": {"prod"}})
	if rows := doc.Find(domtest.Class("parameter")); len(rows) != 3 {
		t.Fatalf("expected 3 parameter rows, got %d", len(rows))
	}
	doc = htmxPost(t, srv, base+"/parameters/COMMAND/delete", nil)
	if rows := doc.Find(domtest.Class("parameter"), domtest.AttrIs("data-parameter-name", "COMMAND")); len(rows) != 0 {
		t.Fatal("expected COMMAND row removed")
	}

	doc = htmxPost(t, srv, base+"/save", nil)
	doc.One(domtest.Class("flash"))

	got, err := srv.store.Get(t.Context(), "yourproject")
	if err != nil {
		t.Fatal(err)
	}
	if got.ETag == stored.ETag {
		t.Fatal("expected save to write a new revision")
	}
	if got.Pipeline.EnablePipelineLocking() {
		t.Error("expected locking disabled in the store")
	}
	if got.Pipeline.LabelTemplate() != "2.0.${COUNT}" {
		t.Errorf("label = %q", got.Pipeline.LabelTemplate())
	}
	if strings.Join(got.Pipeline.Parameters().Names(), ",") != "WORKING_DIR,TARGET" {
		t.Errorf("parameters = %v", got.Pipeline.Parameters().Names())
	}
	if sess.Widget.ETag() != got.ETag {
		t.Errorf("widget etag %q, store etag %q", sess.Widget.ETag(), got.ETag)
	}
}

func TestConsoleSaveConflict(t *testing.T) {
	srv := newTestServer(t)
	stored := seedSample(t, srv)
	sess := openSession(t, srv, "yourproject")

	p := stored.Pipeline
	p.SetLabelTemplate("elsewhere-${COUNT}")
	if _, err := srv.store.Put(t.Context(), p, stored.ETag); err != nil {
		t.Fatal(err)
	}

	doc := htmxPost(t, srv, "/console/sessions/"+sess.ID+"/save", nil)
	flash := doc.One(domtest.Class("flash-error"))
	if !strings.Contains(domtest.Text(flash), "changed by someone else") {
		t.Errorf("flash = %q", domtest.Text(flash))
	}
	got, _ := srv.store.Get(t.Context(), "yourproject")
	if got.Pipeline.LabelTemplate() != "elsewhere-${COUNT}" {
		t.Error("conflicting save must not overwrite the newer revision")
	}
}

func TestConsoleEventErrorsUseTrigger(t *testing.T) {
	srv := newTestServer(t)
	seedSample(t, srv)
	sess := openSession(t, srv, "yourproject")
	base := "/console/sessions/" + sess.ID

	headers := map[string]string{"HX-Request": "true"}
	rec := do(t, srv, http.MethodPost, base+"/click?model_type=pipeline&prop_name=labelTemplate", "", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), errorEvent) {
		t.Errorf("expected %s trigger, got %q", errorEvent, rec.Header().Get("HX-Trigger"))
	}

	if rec := do(t, srv, http.MethodPost, base+"/sections/stages/toggle", "", headers); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown section, got %d", rec.Code)
	}
}

func TestConsolePollsUntilLoaded(t *testing.T) {
	srv := newTestServer(t)
	release := make(chan struct{})
	defer close(release)
	w := widget.New(widget.Config{
		URL: pipelineURL("slow"),
		Source: widget.SourceFunc(func(ctx context.Context, u string) (widget.Document, error) {
			<-release
			return widget.Document{}, context.Canceled
		}),
	})
	w.Mount(context.Background())
	sess := srv.sessions.Create("slow", w)

	rec := do(t, srv, http.MethodGet, "/console/sessions/"+sess.ID+"/widget", "", map[string]string{"HX-Request": "true"})
	doc := domtest.ParseString(t, rec.Body.String())
	root := doc.One(domtest.Class("pipeline"))
	if get, _ := domtest.Attr(root, "hx-get"); get != "/console/sessions/"+sess.ID+"/widget" {
		t.Errorf("expected polling hx-get, got %q", get)
	}
}
