// ABOUTME: Tests for the commands that bridge widget loads and changes into the Bubble Tea loop.
package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/2389-research/pipeconf/widget"
)

func TestWaitForLoadCmdReportsError(t *testing.T) {
	w := widget.New(widget.Config{
		URL: sampleURL,
		Source: widget.SourceFunc(func(ctx context.Context, url string) (widget.Document, error) {
			return widget.Document{}, errors.New("boom")
		}),
	})
	w.Mount(context.Background())

	msg, ok := WaitForLoadCmd(w)().(LoadedMsg)
	if !ok {
		t.Fatal("expected LoadedMsg")
	}
	if msg.Err == nil {
		t.Error("expected load error to be carried")
	}
}

func TestWaitForChangeCmd(t *testing.T) {
	ch := make(chan widget.Change, 1)
	ch <- widget.Change{Kind: widget.ChangeField}

	msg, ok := WaitForChangeCmd(ch)().(ChangeMsg)
	if !ok || msg.Change.Kind != widget.ChangeField {
		t.Fatalf("unexpected message %+v", msg)
	}

	close(ch)
	if got := WaitForChangeCmd(ch)(); got != nil {
		t.Errorf("expected nil after close, got %T", got)
	}
}
