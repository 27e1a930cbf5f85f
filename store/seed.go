// ABOUTME: Parses pipeline documents from JSON or YAML files and imports them into a Store.
// ABOUTME: Accepts a single document, a list, or a {pipelines: [...]} wrapper in either format.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/pipeconf/pipeline"
)

// Format is the syntax of a pipeline document file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from a file extension. Unknown extensions are JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseDocuments decodes one or more pipeline documents. YAML input is
// normalized to JSON and goes through pipeline.Decode like any other document.
func ParseDocuments(data []byte, format Format, opts ...pipeline.DecodeOption) ([]*pipeline.Pipeline, error) {
	var root any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&root); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	var docs []any
	switch v := root.(type) {
	case []any:
		docs = v
	case map[string]any:
		if list, ok := v["pipelines"]; ok {
			items, ok := list.([]any)
			if !ok {
				return nil, errors.New("pipelines must be a list")
			}
			docs = items
		} else {
			docs = []any{v}
		}
	case nil:
		return nil, errors.New("document is empty")
	default:
		return nil, fmt.Errorf("unexpected top-level %T", root)
	}

	out := make([]*pipeline.Pipeline, 0, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		p, err := pipeline.Decode(raw, opts...)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadSeedFile reads and parses a seed file, picking the format by extension.
func LoadSeedFile(path string, opts ...pipeline.DecodeOption) ([]*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	ps, err := ParseDocuments(data, FormatOf(path), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// Seed creates each pipeline that does not exist yet and returns how many
// were created. Pipelines already present are left untouched.
func Seed(ctx context.Context, st Store, pipelines []*pipeline.Pipeline) (int, error) {
	created := 0
	for _, p := range pipelines {
		if err := pipeline.Validate(p); err != nil {
			return created, fmt.Errorf("seed %s: %w", p.Name(), err)
		}
		_, err := st.Create(ctx, p)
		if errors.Is(err, ErrAlreadyExists) {
			log.Printf("component=store action=seed pipeline=%s skipped=exists", p.Name())
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", p.Name(), err)
		}
		created++
	}
	return created, nil
}
