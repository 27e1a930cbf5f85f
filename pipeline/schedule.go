// ABOUTME: Human-readable trigger description for the pipeline settings view.
// ABOUTME: Derives automatic/manual scheduling from the first stage's approval and summarizes the timer.
package pipeline

import "fmt"

const (
	automaticSummary = "Automatically triggered"
	manualSummary    = "Manually triggered"
	automaticTooltip = "This pipeline is automatically triggered as the first stage of this pipeline is set to 'success'."
	manualTooltip    = "This pipeline is manually triggered as the first stage of this pipeline is set to 'manual'."
)

// Schedule describes how a pipeline gets triggered.
type Schedule struct {
	Automatic bool
	Summary   string
	Tooltip   string
	// Timer is empty when the pipeline has no timer.
	Timer string
}

// DescribeSchedule builds the trigger description. A pipeline with no stages
// (for example one built from a template) counts as automatically triggered.
func DescribeSchedule(p *Pipeline) Schedule {
	s := Schedule{Automatic: true, Summary: automaticSummary, Tooltip: automaticTooltip}
	if len(p.stages) > 0 && p.stages[0].Approval == ApprovalManual {
		s = Schedule{Automatic: false, Summary: manualSummary, Tooltip: manualTooltip}
	}
	if t := p.timer; t != nil && t.spec != "" {
		s.Timer = fmt.Sprintf("Also triggered by timer %q", t.spec)
		if t.onlyOnChanges {
			s.Timer += " when materials have changed"
		}
	}
	return s
}
