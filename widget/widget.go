// ABOUTME: Session-scoped configuration view over one pipeline document.
// ABOUTME: Fetches asynchronously, applies click/input events to the model, and notifies subscribers.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/2389-research/pipeconf/pipeline"
)

// Config configures a Widget.
type Config struct {
	// URL identifies the pipeline document for the Source and Saver.
	URL string
	// Source fetches the document. Required.
	Source Source
	// Saver persists edits. When nil and Source also implements Saver, Source is used.
	Saver Saver
	// Sealer encrypts values typed into secure variables. Optional.
	Sealer pipeline.Sealer
	// Callback is invoked with the widget once the fetched model is installed.
	Callback func(*Widget)
	// Now is the clock used for the timer's next run. Defaults to time.Now.
	Now func() time.Time
}

// ChangeKind classifies a Change notification.
type ChangeKind int

const (
	ChangeLoaded ChangeKind = iota
	ChangeLoadFailed
	ChangeSection
	ChangeField
	ChangeRows
	ChangeSaved
	ChangeSaveFailed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeLoadFailed:
		return "load_failed"
	case ChangeSection:
		return "section"
	case ChangeField:
		return "field"
	case ChangeRows:
		return "rows"
	case ChangeSaved:
		return "saved"
	case ChangeSaveFailed:
		return "save_failed"
	default:
		return "unknown"
	}
}

// Change describes one redraw-worthy state change.
type Change struct {
	Kind    ChangeKind
	Section SectionID
	Target  Target
	Err     error
}

// Widget is the configuration view for one pipeline. All methods are safe for
// concurrent use; the *pipeline.Pipeline returned by Pipeline is shared with
// the widget and must not be mutated concurrently with widget events.
type Widget struct {
	cfg Config

	mu       sync.Mutex
	mounted  bool
	pipeline *pipeline.Pipeline
	etag     string
	loadErr  error
	sections map[SectionID]SectionState
	dirty    bool
	revision uint64
	flash    flash
	subs     map[int]func(Change)
	nextSub  int

	loaded chan struct{}
}

type flash struct {
	message string
	isError bool
	fields  map[string][]string
}

// New creates an unmounted widget. Sections start collapsed and unrendered.
func New(cfg Config) *Widget {
	if cfg.Saver == nil {
		if s, ok := cfg.Source.(Saver); ok {
			cfg.Saver = s
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	w := &Widget{
		cfg:      cfg,
		sections: make(map[SectionID]SectionState, len(sectionOrder)),
		subs:     make(map[int]func(Change)),
		loaded:   make(chan struct{}),
	}
	for _, id := range sectionOrder {
		w.sections[id] = CollapsedUnrendered
	}
	return w
}

// Mount issues the fetch and returns immediately. Calling Mount again is a no-op.
func (w *Widget) Mount(ctx context.Context) {
	w.mu.Lock()
	if w.mounted {
		w.mu.Unlock()
		return
	}
	w.mounted = true
	w.mu.Unlock()

	go w.fetch(ctx)
}

func (w *Widget) fetch(ctx context.Context) {
	var doc Document
	err := errors.New("no source configured")
	if w.cfg.Source != nil {
		doc, err = w.cfg.Source.Fetch(ctx, w.cfg.URL)
	}
	if err == nil && doc.Pipeline == nil {
		err = errors.New("source returned no pipeline")
	}

	w.mu.Lock()
	if err != nil {
		w.loadErr = fmt.Errorf("fetch %s: %w", w.cfg.URL, err)
	} else {
		w.pipeline = doc.Pipeline
		w.etag = doc.ETag
	}
	loadErr := w.loadErr
	w.mu.Unlock()

	if loadErr != nil {
		log.Printf("component=widget action=fetch url=%s err=%v", w.cfg.URL, loadErr)
		w.notify(Change{Kind: ChangeLoadFailed, Err: loadErr})
		close(w.loaded)
		return
	}
	if w.cfg.Callback != nil {
		w.cfg.Callback(w)
	}
	w.notify(Change{Kind: ChangeLoaded})
	close(w.loaded)
}

// Loaded is closed once the fetch has resolved, successfully or not. On
// success the Callback and subscribers have already been called.
func (w *Widget) Loaded() <-chan struct{} { return w.loaded }

// Err returns the fetch error, if the fetch failed.
func (w *Widget) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadErr
}

// Pipeline returns the live model, or nil before the fetch succeeds.
func (w *Widget) Pipeline() *pipeline.Pipeline {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pipeline
}

// ETag returns the entity tag of the last fetched or saved document.
func (w *Widget) ETag() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.etag
}

// URL returns the configured document URL.
func (w *Widget) URL() string { return w.cfg.URL }

// Dirty reports whether the model changed since it was fetched or last saved.
func (w *Widget) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// Section returns the state of one accordion section.
func (w *Widget) Section(id SectionID) SectionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sections[id]
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. Notifications are delivered synchronously, outside the widget lock.
func (w *Widget) Subscribe(fn func(Change)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *Widget) notify(c Change) {
	w.mu.Lock()
	fns := make([]func(Change), 0, len(w.subs))
	for i := 0; i < w.nextSub; i++ {
		if fn, ok := w.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
