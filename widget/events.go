// ABOUTME: Event handlers of the configuration view: section toggles, clicks, inputs, rows, and save.
// ABOUTME: Each event mutates the model synchronously under the widget lock, then notifies subscribers.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/2389-research/pipeconf/pipeline"
)

// ToggleSection advances the accordion state of a section. Content is
// constructed on the first expansion and kept, hidden, on collapse.
func (w *Widget) ToggleSection(id SectionID) error {
	w.mu.Lock()
	state, ok := w.sections[id]
	if !ok {
		w.mu.Unlock()
		return &UnknownSectionError{Section: id}
	}
	w.sections[id] = state.next()
	w.mu.Unlock()

	w.notify(Change{Kind: ChangeSection, Section: id})
	return nil
}

// Click toggles the checkbox a target addresses.
func (w *Widget) Click(t Target) error {
	w.mu.Lock()
	b, err := w.resolve(t)
	if err == nil {
		if b.kind != checkboxControl {
			err = ErrNotCheckbox
		} else {
			err = b.toggle()
		}
	}
	if err == nil {
		w.markDirty()
	}
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("click %s: %w", t, err)
	}
	w.notify(Change{Kind: ChangeField, Target: t})
	return nil
}

// Input writes a text value through to the model field a target addresses.
func (w *Widget) Input(t Target, value string) error {
	w.mu.Lock()
	b, err := w.resolve(t)
	if err == nil {
		switch b.kind {
		case textControl:
			err = b.set(value)
		case checkboxControl:
			err = ErrNotCheckbox
		default:
			err = ErrReadOnly
		}
	}
	if err == nil {
		w.markDirty()
	}
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("input %s: %w", t, err)
	}
	w.notify(Change{Kind: ChangeField, Target: t})
	return nil
}

// Value reads the current text of a bound control, or the checked state of a
// checkbox as "true"/"false".
func (w *Widget) Value(t Target) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.resolve(t)
	if err != nil {
		return "", err
	}
	if b.kind == checkboxControl {
		return fmt.Sprint(b.checked()), nil
	}
	return b.text(), nil
}

// AddParameter appends a parameter row.
func (w *Widget) AddParameter(name, value string) error {
	return w.mutateRows(ModelParameter, func(p *pipeline.Pipeline) error {
		return p.Parameters().Add(pipeline.NewParameter(name, value))
	})
}

// RemoveParameter deletes a parameter row.
func (w *Widget) RemoveParameter(name string) error {
	return w.mutateRows(ModelParameter, func(p *pipeline.Pipeline) error {
		if !p.Parameters().Remove(name) {
			return &pipeline.NotFoundError{Collection: "parameters", Name: name}
		}
		return nil
	})
}

// AddVariable appends an environment variable row. A secure variable's value
// is sealed with the configured Sealer.
func (w *Widget) AddVariable(name, value string, secure bool) error {
	return w.mutateRows(ModelVariable, func(p *pipeline.Pipeline) error {
		v := pipeline.NewPlainVariable(name, value)
		if secure {
			if err := v.Seal(w.cfg.Sealer); err != nil {
				return err
			}
		}
		return p.EnvironmentVariables().Add(v)
	})
}

// RemoveVariable deletes an environment variable row.
func (w *Widget) RemoveVariable(name string) error {
	return w.mutateRows(ModelVariable, func(p *pipeline.Pipeline) error {
		if !p.EnvironmentVariables().Remove(name) {
			return &pipeline.NotFoundError{Collection: "environment_variables", Name: name}
		}
		return nil
	})
}

func (w *Widget) mutateRows(mt ModelType, fn func(*pipeline.Pipeline) error) error {
	w.mu.Lock()
	err := ErrNotLoaded
	if w.pipeline != nil {
		err = fn(w.pipeline)
	}
	if err == nil {
		w.markDirty()
	}
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("update %s rows: %w", mt, err)
	}
	w.notify(Change{Kind: ChangeRows, Target: Target{ModelType: mt}})
	return nil
}

// markDirty records a model mutation. Callers hold w.mu.
func (w *Widget) markDirty() {
	w.dirty = true
	w.revision++
}

// Save validates the model and persists it with the ETag it was fetched under.
// Validation failures are returned as *pipeline.ValidationError; a stale ETag
// yields ErrConflict.
func (w *Widget) Save(ctx context.Context) error {
	w.mu.Lock()
	if w.pipeline == nil {
		w.mu.Unlock()
		return ErrNotLoaded
	}
	if w.cfg.Saver == nil {
		w.mu.Unlock()
		return ErrNoSaver
	}
	snapshot := w.pipeline.Clone()
	etag := w.etag
	revision := w.revision
	w.mu.Unlock()

	err := pipeline.Validate(snapshot)
	var newETag string
	if err == nil {
		newETag, err = w.cfg.Saver.Save(ctx, w.cfg.URL, snapshot, etag)
	}

	w.mu.Lock()
	if err != nil {
		w.flash = flash{message: saveFailureMessage(err), isError: true}
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			w.flash.fields = verr.Fields
		}
	} else {
		w.etag = newETag
		// Edits made while the save was in flight are not in the snapshot.
		w.dirty = w.revision != revision
		w.flash = flash{message: "Saved " + snapshot.Name()}
	}
	w.mu.Unlock()

	if err != nil {
		log.Printf("component=widget action=save pipeline=%s err=%v", snapshot.Name(), err)
		w.notify(Change{Kind: ChangeSaveFailed, Err: err})
		return err
	}
	log.Printf("component=widget action=save pipeline=%s etag=%s", snapshot.Name(), newETag)
	w.notify(Change{Kind: ChangeSaved})
	return nil
}

func saveFailureMessage(err error) string {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		return "The pipeline configuration has errors."
	case errors.Is(err, ErrConflict):
		return "This pipeline was changed by someone else. Reload to see the latest configuration."
	default:
		return "Save failed: " + err.Error()
	}
}
