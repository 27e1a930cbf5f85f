// ABOUTME: Tool handlers for the MCP server: typed inputs and outputs over the pipeline store.
// ABOUTME: Handler errors are reported to the client as tool errors.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/store"
)

// PipelineSummary is one row of list_pipelines.
type PipelineSummary struct {
	Name                  string `json:"name"`
	LabelTemplate         string `json:"label_template"`
	TemplateName          string `json:"template_name,omitempty"`
	EnablePipelineLocking bool   `json:"enable_pipeline_locking"`
	TimerSpec             string `json:"timer_spec,omitempty"`
	ETag                  string `json:"etag"`
	UpdatedAt             string `json:"updated_at"`
}

func summarize(rec store.Record) PipelineSummary {
	p := rec.Pipeline
	s := PipelineSummary{
		Name:                  p.Name(),
		LabelTemplate:         p.LabelTemplate(),
		EnablePipelineLocking: p.EnablePipelineLocking(),
		ETag:                  rec.ETag,
		UpdatedAt:             rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	s.TemplateName, _ = p.TemplateName()
	if t := p.Timer(); t != nil {
		s.TimerSpec = t.Spec()
	}
	return s
}

type listInput struct{}

type listOutput struct {
	Pipelines []PipelineSummary `json:"pipelines"`
}

func (s *Server) listPipelines(ctx context.Context, _ *mcp.CallToolRequest, _ listInput) (*mcp.CallToolResult, listOutput, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, listOutput{}, err
	}
	out := listOutput{Pipelines: make([]PipelineSummary, 0, len(recs))}
	for _, rec := range recs {
		out.Pipelines = append(out.Pipelines, summarize(rec))
	}
	return nil, out, nil
}

type getInput struct {
	Name string `json:"name" jsonschema:"the pipeline name"`
}

type getOutput struct {
	ETag     string         `json:"etag"`
	Pipeline map[string]any `json:"pipeline"`
}

func (s *Server) getPipeline(ctx context.Context, _ *mcp.CallToolRequest, in getInput) (*mcp.CallToolResult, getOutput, error) {
	rec, err := s.store.Get(ctx, in.Name)
	if err != nil {
		return nil, getOutput{}, lookupError(in.Name, err)
	}
	doc, err := documentOf(rec.Pipeline)
	if err != nil {
		return nil, getOutput{}, err
	}
	return nil, getOutput{ETag: rec.ETag, Pipeline: doc}, nil
}

type updateInput struct {
	Name                  string  `json:"name" jsonschema:"the pipeline name"`
	ETag                  string  `json:"etag,omitempty" jsonschema:"ETag from get_pipeline; when set the update fails if the pipeline changed since"`
	LabelTemplate         *string `json:"label_template,omitempty" jsonschema:"new label template, must contain a ${...} token"`
	EnablePipelineLocking *bool   `json:"enable_pipeline_locking,omitempty" jsonschema:"whether only one instance may run at a time"`
	TimerSpec             *string `json:"timer_spec,omitempty" jsonschema:"six-field cron spec such as 0 0 22 ? * MON-FRI; empty removes the timer"`
	TimerOnlyOnChanges    *bool   `json:"timer_only_on_changes,omitempty" jsonschema:"trigger on the timer only when materials changed"`
}

type updateOutput struct {
	ETag     string          `json:"etag"`
	Pipeline PipelineSummary `json:"pipeline"`
}

func (s *Server) updateSettings(ctx context.Context, _ *mcp.CallToolRequest, in updateInput) (*mcp.CallToolResult, updateOutput, error) {
	rec, err := s.store.Get(ctx, in.Name)
	if err != nil {
		return nil, updateOutput{}, lookupError(in.Name, err)
	}
	ifMatch := in.ETag
	if ifMatch == "" {
		ifMatch = rec.ETag
	}

	p := rec.Pipeline
	if err := applySettings(p, in); err != nil {
		return nil, updateOutput{}, err
	}
	if err := pipeline.Validate(p); err != nil {
		return nil, updateOutput{}, err
	}

	saved, err := s.store.Put(ctx, p, ifMatch)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, updateOutput{}, fmt.Errorf("pipeline %q was changed since etag %s; fetch it again", in.Name, ifMatch)
	}
	if err != nil {
		return nil, updateOutput{}, err
	}
	log.Printf("component=mcp action=update_settings pipeline=%s etag=%s", in.Name, saved.ETag)
	return nil, updateOutput{ETag: saved.ETag, Pipeline: summarize(saved)}, nil
}

// applySettings follows the console's timer semantics: an empty spec clears
// the timer, a spec on a pipeline without one creates it.
func applySettings(p *pipeline.Pipeline, in updateInput) error {
	if in.LabelTemplate != nil {
		p.SetLabelTemplate(*in.LabelTemplate)
	}
	if in.EnablePipelineLocking != nil {
		p.SetEnablePipelineLocking(*in.EnablePipelineLocking)
	}
	if in.TimerSpec != nil {
		spec := strings.TrimSpace(*in.TimerSpec)
		switch t := p.Timer(); {
		case spec == "":
			p.ClearTimer()
		case t == nil:
			p.SetTimer(pipeline.NewTimer(spec, false))
		default:
			t.SetSpec(spec)
		}
	}
	if in.TimerOnlyOnChanges != nil {
		t := p.Timer()
		if t == nil {
			return errors.New("pipeline has no timer; set timer_spec first")
		}
		t.SetOnlyOnChanges(*in.TimerOnlyOnChanges)
	}
	return nil
}

type validateInput struct {
	Document string `json:"document" jsonschema:"the pipeline document as JSON or YAML text"`
	Format   string `json:"format,omitempty" jsonschema:"json or yaml; defaults to json"`
}

type validateOutput struct {
	Valid   bool                `json:"valid"`
	Name    string              `json:"name,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// validatePipeline reports problems in its output rather than as tool errors.
func (s *Server) validatePipeline(_ context.Context, _ *mcp.CallToolRequest, in validateInput) (*mcp.CallToolResult, validateOutput, error) {
	format := store.FormatJSON
	switch strings.ToLower(in.Format) {
	case "", "json":
	case "yaml", "yml":
		format = store.FormatYAML
	default:
		return nil, validateOutput{}, fmt.Errorf("unknown format %q", in.Format)
	}

	var opts []pipeline.DecodeOption
	if s.sealer != nil {
		opts = append(opts, pipeline.WithSealer(s.sealer))
	}
	ps, err := store.ParseDocuments([]byte(in.Document), format, opts...)
	if err != nil {
		return nil, validateOutput{Message: err.Error()}, nil
	}
	if len(ps) != 1 {
		return nil, validateOutput{Message: fmt.Sprintf("expected one pipeline document, got %d", len(ps))}, nil
	}

	p := ps[0]
	out := validateOutput{Name: p.Name()}
	if err := pipeline.Validate(p); err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			out.Errors = verr.Fields
		}
		out.Message = err.Error()
		return nil, out, nil
	}
	out.Valid = true
	return nil, out, nil
}

func lookupError(name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("pipeline %q not found", name)
	}
	return err
}

func documentOf(p *pipeline.Pipeline) (map[string]any, error) {
	data, err := pipeline.Encode(p)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
