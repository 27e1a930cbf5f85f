// ABOUTME: Immutable snapshot of the configuration view shared by the HTML and terminal renderers.
// ABOUTME: Section content is only built for sections that have been rendered at least once.
package widget

import (
	"time"

	"github.com/2389-research/pipeconf/pipeline"
)

const headingPrefix = "Pipeline configuation for pipeline "

const nextRunLayout = "Mon 02 Jan 2006 15:04:05 MST"

const (
	labelTemplateHelp = "Customize the label of each pipeline instance. Use `${COUNT}` for the run " +
		"counter and `${<material-name>}` to embed a material revision, e.g. `1.0.${COUNT}-${svn}`."
	lockingHelp = "When locked, only a single instance of the pipeline runs at a time and the " +
		"next instance waits until the current one **completes or fails**."
	timerHelp = "A cron-like specification of six fields: `seconds minutes hours day-of-month " +
		"month day-of-week`, for example `0 0 22 ? * MON-FRI`."
)

// ViewData is a point-in-time copy of everything a renderer draws.
type ViewData struct {
	Loaded    bool
	LoadError string
	Name      string
	Heading   string
	Dirty     bool

	Flash      string
	FlashError bool
	FieldErrs  map[string][]string

	Sections []SectionView
}

// SectionView is one accordion section. Exactly one content pointer is set,
// and only when the section has been rendered and the model is loaded.
type SectionView struct {
	ID       SectionID
	Title    string
	Class    string
	State    SectionState
	Expanded bool
	Rendered bool

	Settings   *SettingsView
	Parameters *ParametersView
	Variables  *VariablesView
}

// SettingsView is the content of the pipeline settings section.
type SettingsView struct {
	Name          string
	LabelTemplate string
	Locking       bool
	HasTemplate   bool
	TemplateName  string
	Schedule      pipeline.Schedule
	HasTimer      bool
	TimerSpec     string
	OnlyOnChanges bool
	// NextRun is the timer's next fire time, empty when the spec does not parse.
	NextRun string
	Stages  []pipeline.Stage

	LabelTemplateHelp string
	LockingHelp       string
	TimerHelp         string
}

// ParametersView is the content of the parameters section.
type ParametersView struct {
	Rows []ParameterRow
}

// ParameterRow is one parameter.
type ParameterRow struct {
	Name  string
	Value string
}

// VariablesView is the content of the environment variables section.
type VariablesView struct {
	Rows      []VariableRow
	CanSecure bool
}

// VariableRow is one environment variable. Secure rows never carry a value.
type VariableRow struct {
	Name   string
	Value  string
	Type   pipeline.VariableType
	Secure bool
}

// View snapshots the widget for rendering.
func (w *Widget) View() ViewData {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := ViewData{
		Dirty:      w.dirty,
		Flash:      w.flash.message,
		FlashError: w.flash.isError,
		FieldErrs:  w.flash.fields,
	}
	if w.loadErr != nil {
		v.LoadError = w.loadErr.Error()
	}
	p := w.pipeline
	if p != nil {
		v.Loaded = true
		v.Name = p.Name()
		v.Heading = headingPrefix + p.Name()
	}

	for _, id := range sectionOrder {
		state := w.sections[id]
		meta := sectionMeta[id]
		sv := SectionView{
			ID:       id,
			Title:    meta.title,
			Class:    meta.class,
			State:    state,
			Expanded: state.Expanded(),
			Rendered: state.Rendered(),
		}
		if sv.Rendered && p != nil {
			switch id {
			case SectionSettings:
				sv.Settings = settingsView(p, w.cfg.Now())
			case SectionParameters:
				sv.Parameters = parametersView(p)
			case SectionVariables:
				sv.Variables = variablesView(p, w.cfg.Sealer != nil)
			}
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}

func settingsView(p *pipeline.Pipeline, now time.Time) *SettingsView {
	s := &SettingsView{
		Name:              p.Name(),
		LabelTemplate:     p.LabelTemplate(),
		Locking:           p.EnablePipelineLocking(),
		Schedule:          pipeline.DescribeSchedule(p),
		LabelTemplateHelp: labelTemplateHelp,
		LockingHelp:       lockingHelp,
		TimerHelp:         timerHelp,
	}
	s.TemplateName, s.HasTemplate = p.TemplateName()
	if t := p.Timer(); t != nil {
		s.HasTimer = true
		s.TimerSpec = t.Spec()
		s.OnlyOnChanges = t.OnlyOnChanges()
		if next, err := t.Next(now); err == nil {
			s.NextRun = next.Format(nextRunLayout)
		}
	}
	if !s.HasTemplate {
		s.Stages = p.Stages()
	}
	return s
}

func parametersView(p *pipeline.Pipeline) *ParametersView {
	pv := &ParametersView{Rows: []ParameterRow{}}
	for param := range p.Parameters().All() {
		pv.Rows = append(pv.Rows, ParameterRow{Name: param.Name(), Value: param.Value()})
	}
	return pv
}

func variablesView(p *pipeline.Pipeline, canSecure bool) *VariablesView {
	vv := &VariablesView{Rows: []VariableRow{}, CanSecure: canSecure}
	for v := range p.EnvironmentVariables().All() {
		vv.Rows = append(vv.Rows, VariableRow{
			Name:   v.Name(),
			Value:  v.Value(),
			Type:   v.Type(),
			Secure: v.IsSecure(),
		})
	}
	return vv
}
