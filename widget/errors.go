// ABOUTME: Errors returned by the configuration view for events it cannot apply.
// ABOUTME: Transport errors from sources are wrapped; conflicts map to ErrConflict.
package widget

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded indicates a model event arrived before the fetch resolved.
	ErrNotLoaded = errors.New("pipeline not loaded yet")

	// ErrReadOnly indicates an input event aimed at a display-only control.
	ErrReadOnly = errors.New("control is read-only")

	// ErrNotCheckbox indicates a click aimed at a control that is not a checkbox.
	ErrNotCheckbox = errors.New("control is not a checkbox")

	// ErrNoTimer indicates a timer flag was toggled on a pipeline without a timer.
	ErrNoTimer = errors.New("pipeline has no timer")

	// ErrNoSaver indicates Save was called on a view without a save collaborator.
	ErrNoSaver = errors.New("no saver configured")

	// ErrConflict indicates the pipeline changed on the server since it was fetched.
	ErrConflict = errors.New("pipeline was modified since it was fetched")
)

// UnknownTargetError indicates an event addressed no bound control.
type UnknownTargetError struct {
	Target Target
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("no control bound to %s", e.Target)
}

// UnknownSectionError indicates a toggle for a section the view does not have.
type UnknownSectionError struct {
	Section SectionID
}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("unknown section %q", string(e.Section))
}

// StatusError is returned by HTTPSource for unexpected HTTP responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
