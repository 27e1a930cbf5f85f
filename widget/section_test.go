// ABOUTME: Tests for the accordion section state machine.
package widget

import "testing"

func TestSectionStateTransitions(t *testing.T) {
	s := CollapsedUnrendered
	if s.Rendered() || s.Expanded() {
		t.Fatal("initial state must be collapsed and unrendered")
	}
	steps := []SectionState{ExpandedRendered, CollapsedRendered, ExpandedRendered, CollapsedRendered}
	for i, want := range steps {
		s = s.next()
		if s != want {
			t.Fatalf("step %d: got %s, want %s", i, s, want)
		}
		if !s.Rendered() {
			t.Fatalf("step %d: content must stay rendered once constructed", i)
		}
	}
}

func TestParseSectionID(t *testing.T) {
	for _, name := range []string{"settings", "parameters", "environment-variables"} {
		if _, ok := ParseSectionID(name); !ok {
			t.Errorf("expected %q to parse", name)
		}
	}
	if _, ok := ParseSectionID("stages"); ok {
		t.Error("expected unknown section to be rejected")
	}
}
