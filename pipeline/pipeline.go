// ABOUTME: Pipeline model holding a pipeline's editable configuration behind accessors.
// ABOUTME: Accessors are the single source of truth that the configuration view binds to.
package pipeline

// DefaultLabelTemplate is used when a pipeline document carries no label template.
const DefaultLabelTemplate = "${COUNT}"

// Pipeline is an in-memory pipeline configuration. Instances are created by
// Decode (or New) and mutated in place through the setters; a set is visible
// to the next read with no buffering.
type Pipeline struct {
	name                  string
	labelTemplate         string
	enablePipelineLocking bool
	templateName          string
	timer                 *Timer
	parameters            *Parameters
	variables             *EnvironmentVariables
	stages                []Stage
}

// New creates an empty pipeline with the given name and the default label template.
func New(name string) *Pipeline {
	return &Pipeline{
		name:          name,
		labelTemplate: DefaultLabelTemplate,
		parameters:    NewParameters(),
		variables:     NewEnvironmentVariables(),
	}
}

// Name returns the pipeline name. It cannot be changed after construction.
func (p *Pipeline) Name() string { return p.name }

// LabelTemplate returns the label template used to name pipeline instances.
func (p *Pipeline) LabelTemplate() string { return p.labelTemplate }

// SetLabelTemplate replaces the label template.
func (p *Pipeline) SetLabelTemplate(v string) { p.labelTemplate = v }

// EnablePipelineLocking reports whether only one instance may run at a time.
func (p *Pipeline) EnablePipelineLocking() bool { return p.enablePipelineLocking }

// SetEnablePipelineLocking sets the locking flag.
func (p *Pipeline) SetEnablePipelineLocking(v bool) { p.enablePipelineLocking = v }

// TemplateName returns the template this pipeline is built from, if any.
func (p *Pipeline) TemplateName() (string, bool) {
	return p.templateName, p.templateName != ""
}

// SetTemplateName points the pipeline at a template. An empty name clears it.
func (p *Pipeline) SetTemplateName(name string) { p.templateName = name }

// Timer returns the pipeline timer, or nil when the pipeline has none.
func (p *Pipeline) Timer() *Timer { return p.timer }

// SetTimer installs a timer, replacing any existing one.
func (p *Pipeline) SetTimer(t *Timer) { p.timer = t }

// ClearTimer removes the timer.
func (p *Pipeline) ClearTimer() { p.timer = nil }

// Parameters returns the pipeline's parameter collection.
func (p *Pipeline) Parameters() *Parameters { return p.parameters }

// EnvironmentVariables returns the pipeline's environment variable collection.
func (p *Pipeline) EnvironmentVariables() *EnvironmentVariables { return p.variables }

// Stages returns a copy of the pipeline's stages in order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// SetStages replaces the stage list.
func (p *Pipeline) SetStages(stages []Stage) {
	p.stages = make([]Stage, len(stages))
	copy(p.stages, stages)
}

// Clone returns a deep copy that shares no mutable state with p.
func (p *Pipeline) Clone() *Pipeline {
	cp := &Pipeline{
		name:                  p.name,
		labelTemplate:         p.labelTemplate,
		enablePipelineLocking: p.enablePipelineLocking,
		templateName:          p.templateName,
		parameters:            p.parameters.clone(),
		variables:             p.variables.clone(),
		stages:                p.Stages(),
	}
	if p.timer != nil {
		t := *p.timer
		cp.timer = &t
	}
	return cp
}

// ApprovalType decides how a stage is triggered once its predecessor finishes.
type ApprovalType string

const (
	ApprovalSuccess ApprovalType = "success"
	ApprovalManual  ApprovalType = "manual"
)

// Stage is the subset of stage configuration the pipeline settings view needs.
type Stage struct {
	Name     string
	Approval ApprovalType
}
