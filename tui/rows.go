// ABOUTME: Flattens a widget ViewData snapshot into the focusable rows of the terminal view.
// ABOUTME: Rows are addressed by the same model-type/prop-name targets as the HTML controls.
package tui

import (
	"fmt"

	"github.com/2389-research/pipeconf/widget"
)

// RowKind distinguishes how a row reacts to enter and space.
type RowKind int

const (
	RowSection RowKind = iota
	RowText
	RowCheckbox
	RowReadOnly
	RowInfo
)

// Row is one line of the terminal view.
type Row struct {
	Kind    RowKind
	Section widget.SectionID
	Label   string
	Value   string
	Checked bool
	Secret  bool
	Target  widget.Target
	// Field is the validation error key for the row, if any.
	Field string
}

// Focusable reports whether the cursor may rest on the row.
func (r Row) Focusable() bool {
	return r.Kind != RowInfo
}

// BuildRows lays out the sections of v in order. Content rows appear only for
// expanded sections.
func BuildRows(v widget.ViewData) []Row {
	var rows []Row
	for _, s := range v.Sections {
		marker := "▸"
		if s.Expanded {
			marker = "▾"
		}
		rows = append(rows, Row{
			Kind:    RowSection,
			Section: s.ID,
			Label:   fmt.Sprintf("%s %s", marker, s.Title),
		})
		if !s.Expanded {
			continue
		}
		switch {
		case s.Settings != nil:
			rows = append(rows, settingsRows(s.Settings)...)
		case s.Parameters != nil:
			rows = append(rows, parameterRows(s.Parameters)...)
		case s.Variables != nil:
			rows = append(rows, variableRows(s.Variables)...)
		}
	}
	return rows
}

func control(kind RowKind, section widget.SectionID, t widget.Target, value string) Row {
	return Row{Kind: kind, Section: section, Label: t.String(), Value: value, Target: t}
}

func info(section widget.SectionID, label, value string) Row {
	return Row{Kind: RowInfo, Section: section, Label: label, Value: value}
}

func settingsRows(s *widget.SettingsView) []Row {
	sec := widget.SectionSettings
	rows := []Row{
		control(RowReadOnly, sec, widget.Target{ModelType: widget.ModelPipeline, PropName: widget.PropName}, s.Name),
	}
	if s.HasTemplate {
		rows = append(rows, control(RowReadOnly, sec, widget.Target{ModelType: widget.ModelPipeline, PropName: widget.PropTemplateName}, s.TemplateName))
	}

	label := control(RowText, sec, widget.Target{ModelType: widget.ModelPipeline, PropName: widget.PropLabelTemplate}, s.LabelTemplate)
	label.Field = "label_template"
	rows = append(rows, label)

	locking := control(RowCheckbox, sec, widget.Target{ModelType: widget.ModelPipeline, PropName: widget.PropLocking}, "")
	locking.Checked = s.Locking
	rows = append(rows, locking)

	rows = append(rows, info(sec, "schedule", s.Schedule.Summary))
	if s.Schedule.Timer != "" {
		rows = append(rows, info(sec, "", s.Schedule.Timer))
	}
	if s.NextRun != "" {
		rows = append(rows, info(sec, "next run", s.NextRun))
	}

	spec := control(RowText, sec, widget.Target{ModelType: widget.ModelTimer, PropName: widget.PropSpec}, s.TimerSpec)
	spec.Field = "timer.spec"
	rows = append(rows, spec)
	if s.HasTimer {
		only := control(RowCheckbox, sec, widget.Target{ModelType: widget.ModelTimer, PropName: widget.PropOnlyOnChanges}, "")
		only.Checked = s.OnlyOnChanges
		rows = append(rows, only)
	}

	for _, st := range s.Stages {
		rows = append(rows, info(sec, "stage", fmt.Sprintf("%s (%s)", st.Name, st.Approval)))
	}
	return rows
}

func parameterRows(p *widget.ParametersView) []Row {
	sec := widget.SectionParameters
	if len(p.Rows) == 0 {
		return []Row{info(sec, "", "No parameters. Press a to add one.")}
	}
	var rows []Row
	for i, r := range p.Rows {
		name := control(RowText, sec, widget.Target{ModelType: widget.ModelParameter, PropName: widget.PropName, Key: r.Name}, r.Name)
		name.Field = fmt.Sprintf("parameters[%d].name", i)
		rows = append(rows,
			name,
			control(RowText, sec, widget.Target{ModelType: widget.ModelParameter, PropName: widget.PropValue, Key: r.Name}, r.Value),
		)
	}
	return rows
}

func variableRows(v *widget.VariablesView) []Row {
	sec := widget.SectionVariables
	if len(v.Rows) == 0 {
		return []Row{info(sec, "", "No environment variables. Press a to add one.")}
	}
	var rows []Row
	for i, r := range v.Rows {
		name := control(RowText, sec, widget.Target{ModelType: widget.ModelVariable, PropName: widget.PropName, Key: r.Name}, r.Name)
		name.Field = fmt.Sprintf("environment_variables[%d].name", i)

		value := control(RowText, sec, widget.Target{ModelType: widget.ModelVariable, PropName: widget.PropValue, Key: r.Name}, r.Value)
		value.Secret = r.Secure

		secure := control(RowCheckbox, sec, widget.Target{ModelType: widget.ModelVariable, PropName: widget.PropSecure, Key: r.Name}, "")
		secure.Checked = r.Secure

		rows = append(rows, name, value, secure)
	}
	return rows
}
