// ABOUTME: HTML rendering of the configuration view from embedded html/template files.
// ABOUTME: Emits stable data-* addressing attributes and, with an action base, htmx event wiring.
package widget

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

var widgetTemplates = template.Must(
	template.New("widget").Funcs(template.FuncMap{
		"markdown":   markdownToHTML,
		"sectionURL": sectionURL,
		"eventURL":   eventURL,
		"rowURL":     rowURL,
		"errorsFor":  errorsFor,
		"content":    content,
		"join":       strings.Join,
	}).ParseFS(templateFS, "templates/*.html"),
)

// RenderOptions controls how the view is rendered.
type RenderOptions struct {
	// ActionBase is the URL prefix of the session's event endpoints. When
	// empty the markup is static and carries no htmx attributes.
	ActionBase string
}

type renderData struct {
	View     ViewData
	Base     string
	Sections []sectionData
}

type sectionData struct {
	SectionView
	Base string
	Errs map[string][]string
}

// contentData carries a section's content into its sub-template together
// with the action base and field errors.
type contentData struct {
	Base string
	Errs map[string][]string
	C    any
}

func content(s sectionData, c any) contentData {
	return contentData{Base: s.Base, Errs: s.Errs, C: c}
}

// Render writes the current view as an HTML fragment.
func (w *Widget) Render(out io.Writer, opts RenderOptions) error {
	view := w.View()
	data := renderData{View: view, Base: strings.TrimSuffix(opts.ActionBase, "/")}
	for _, s := range view.Sections {
		data.Sections = append(data.Sections, sectionData{SectionView: s, Base: data.Base, Errs: view.FieldErrs})
	}
	if err := widgetTemplates.ExecuteTemplate(out, "widget", data); err != nil {
		return fmt.Errorf("render widget: %w", err)
	}
	return nil
}

// markdownToHTML converts help text to HTML with goldmark. Raw HTML in the
// input is omitted by goldmark's default renderer.
func markdownToHTML(input string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(buf.String())
}

func sectionURL(base string, id SectionID) string {
	return base + "/sections/" + url.PathEscape(string(id)) + "/toggle"
}

func eventURL(base, event, modelType, prop, key string) string {
	q := url.Values{}
	q.Set("model_type", modelType)
	q.Set("prop_name", prop)
	if key != "" {
		q.Set("key", key)
	}
	return base + "/" + event + "?" + q.Encode()
}

func rowURL(base, collection, name string) string {
	return base + "/" + collection + "/" + url.PathEscape(name) + "/delete"
}

func errorsFor(errs map[string][]string, field string) string {
	return strings.Join(errs[field], "; ")
}
