// ABOUTME: Adapts a store.Store to the widget's Source and Saver collaborators.
// ABOUTME: Widget URLs are API paths; the last path segment names the pipeline.
package web

import (
	"context"
	"errors"
	"net/url"
	"path"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/store"
	"github.com/2389-research/pipeconf/widget"
)

const apiPipelinesPath = "/api/admin/pipelines"

// pipelineURL is the API path of one pipeline document.
func pipelineURL(name string) string {
	return apiPipelinesPath + "/" + url.PathEscape(name)
}

type storeSource struct {
	store store.Store
}

func nameFromURL(u string) (string, error) {
	return url.PathUnescape(path.Base(u))
}

// Fetch loads the pipeline named by the URL.
func (s storeSource) Fetch(ctx context.Context, u string) (widget.Document, error) {
	name, err := nameFromURL(u)
	if err != nil {
		return widget.Document{}, err
	}
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return widget.Document{}, err
	}
	return widget.Document{Pipeline: rec.Pipeline, ETag: rec.ETag}, nil
}

// Save writes the pipeline under If-Match semantics.
func (s storeSource) Save(ctx context.Context, u string, p *pipeline.Pipeline, etag string) (string, error) {
	rec, err := s.store.Put(ctx, p, etag)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return "", widget.ErrConflict
	}
	if err != nil {
		return "", err
	}
	return rec.ETag, nil
}
