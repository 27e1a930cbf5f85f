// ABOUTME: Accordion section state machine for the configuration view.
// ABOUTME: Content is constructed on first expansion and kept (hidden) when collapsed again.
package widget

// SectionID names a collapsible section of the configuration view.
type SectionID string

const (
	SectionSettings   SectionID = "settings"
	SectionParameters SectionID = "parameters"
	SectionVariables  SectionID = "environment-variables"
)

// sectionOrder is the display order of the accordion.
var sectionOrder = []SectionID{SectionSettings, SectionParameters, SectionVariables}

var sectionMeta = map[SectionID]struct {
	title string
	class string
}{
	SectionSettings:   {title: "Pipeline Settings", class: "pipeline-settings"},
	SectionParameters: {title: "Parameters", class: "parameters"},
	SectionVariables:  {title: "Environment Variables", class: "environment-variables"},
}

// SectionState is the render state of one accordion section.
type SectionState int

const (
	// CollapsedUnrendered is the initial state: no content exists in the output.
	CollapsedUnrendered SectionState = iota
	// ExpandedRendered shows constructed content.
	ExpandedRendered
	// CollapsedRendered keeps constructed content in the output but hidden.
	CollapsedRendered
)

func (s SectionState) String() string {
	switch s {
	case CollapsedUnrendered:
		return "collapsed-unrendered"
	case ExpandedRendered:
		return "expanded-rendered"
	case CollapsedRendered:
		return "collapsed-rendered"
	default:
		return "unknown"
	}
}

// Expanded reports whether the section content is visible.
func (s SectionState) Expanded() bool { return s == ExpandedRendered }

// Rendered reports whether the section content has been constructed.
func (s SectionState) Rendered() bool { return s != CollapsedUnrendered }

// next is the transition fired by a click on the section header.
func (s SectionState) next() SectionState {
	if s == ExpandedRendered {
		return CollapsedRendered
	}
	return ExpandedRendered
}

// ParseSectionID maps a section name from a URL or key binding to a SectionID.
func ParseSectionID(s string) (SectionID, bool) {
	id := SectionID(s)
	_, ok := sectionMeta[id]
	return id, ok
}
