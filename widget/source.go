// ABOUTME: Fetch and save collaborators of the configuration view.
// ABOUTME: HTTPSource talks to the pipeline JSON API using ETag / If-Match concurrency.
package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389-research/pipeconf/pipeline"
)

// Document is a fetched pipeline together with its entity tag.
type Document struct {
	Pipeline *pipeline.Pipeline
	ETag     string
}

// Source fetches the pipeline document at a URL.
type Source interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// Saver persists a pipeline under an If-Match precondition and returns the new ETag.
type Saver interface {
	Save(ctx context.Context, url string, p *pipeline.Pipeline, etag string) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, url string) (Document, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, url string) (Document, error) { return f(ctx, url) }

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, url string, p *pipeline.Pipeline, etag string) (string, error)

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, url string, p *pipeline.Pipeline, etag string) (string, error) {
	return f(ctx, url, p, etag)
}

const maxDocumentBytes = 4 << 20

// HTTPSource fetches and saves pipeline documents over HTTP.
type HTTPSource struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Token is sent as a bearer token when non-empty.
	Token string
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPSource) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return req, nil
}

// Fetch GETs the document and decodes it.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (Document, error) {
	req, err := s.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Document{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	p, err := pipeline.Decode(body)
	if err != nil {
		return Document{}, err
	}
	return Document{Pipeline: p, ETag: resp.Header.Get("ETag")}, nil
}

// apiError is the JSON error body returned by the pipeline API.
type apiError struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Save PUTs the document with If-Match. 412 maps to ErrConflict and 422 to
// *pipeline.ValidationError.
func (s *HTTPSource) Save(ctx context.Context, url string, p *pipeline.Pipeline, etag string) (string, error) {
	data, err := pipeline.Encode(p)
	if err != nil {
		return "", err
	}
	req, err := s.newRequest(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return "", ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var ae apiError
		if err := json.Unmarshal(body, &ae); err != nil || len(ae.Errors) == 0 {
			return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return "", &pipeline.ValidationError{Fields: ae.Errors}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	newETag := resp.Header.Get("ETag")
	if newETag == "" {
		return "", errors.New("server did not return an ETag")
	}
	return newETag, nil
}
