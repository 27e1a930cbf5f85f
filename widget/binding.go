// ABOUTME: Stable addressing of bound controls by model type, property name, and row key.
// ABOUTME: Resolves a Target to the getter/setter pair that reads and writes the pipeline model.
package widget

import (
	"fmt"

	"github.com/2389-research/pipeconf/pipeline"
)

// ModelType is the data-model-type attribute value of a bound control.
type ModelType string

const (
	ModelPipeline  ModelType = "pipeline"
	ModelTimer     ModelType = "pipelineTimer"
	ModelParameter ModelType = "parameter"
	ModelVariable  ModelType = "environmentVariable"
)

// Property names used in data-prop-name attributes.
const (
	PropName          = "name"
	PropLabelTemplate = "labelTemplate"
	PropLocking       = "enablePipelineLocking"
	PropTemplateName  = "templateName"
	PropSpec          = "spec"
	PropOnlyOnChanges = "onlyOnChanges"
	PropValue         = "value"
	PropSecure        = "secure"
)

// Target addresses one bound control. Key is the row name for parameter and
// environment variable controls and empty otherwise.
type Target struct {
	ModelType ModelType
	PropName  string
	Key       string
}

func (t Target) String() string {
	if t.Key == "" {
		return fmt.Sprintf("%s.%s", t.ModelType, t.PropName)
	}
	return fmt.Sprintf("%s[%s].%s", t.ModelType, t.Key, t.PropName)
}

var inputNames = map[ModelType]map[string]string{
	ModelPipeline: {
		PropName:          "name",
		PropLabelTemplate: "label_template",
		PropLocking:       "enable_pipeline_locking",
		PropTemplateName:  "template_name",
	},
	ModelTimer: {
		PropSpec:          "timer_spec",
		PropOnlyOnChanges: "timer_only_on_changes",
	},
	ModelParameter: {
		PropName:  "parameter_name",
		PropValue: "parameter_value",
	},
	ModelVariable: {
		PropName:   "variable_name",
		PropValue:  "variable_value",
		PropSecure: "variable_secure",
	},
}

// InputName returns the HTML name attribute of the control a target addresses,
// or "" if no such control exists.
func InputName(t Target) string {
	return inputNames[t.ModelType][t.PropName]
}

type controlKind int

const (
	textControl controlKind = iota
	checkboxControl
	readOnlyControl
)

// binding is a resolved control: how to read it and how to change it.
type binding struct {
	kind    controlKind
	text    func() string
	checked func() bool
	set     func(string) error
	toggle  func() error
}

// resolve maps a target onto the loaded model. Callers hold w.mu.
func (w *Widget) resolve(t Target) (binding, error) {
	p := w.pipeline
	if p == nil {
		return binding{}, ErrNotLoaded
	}
	unknown := &UnknownTargetError{Target: t}

	switch t.ModelType {
	case ModelPipeline:
		switch t.PropName {
		case PropName:
			return binding{kind: readOnlyControl, text: p.Name}, nil
		case PropTemplateName:
			name, ok := p.TemplateName()
			if !ok {
				return binding{}, unknown
			}
			return binding{kind: readOnlyControl, text: func() string { return name }}, nil
		case PropLabelTemplate:
			return binding{
				kind: textControl,
				text: p.LabelTemplate,
				set:  func(v string) error { p.SetLabelTemplate(v); return nil },
			}, nil
		case PropLocking:
			return binding{
				kind:    checkboxControl,
				checked: p.EnablePipelineLocking,
				toggle:  func() error { p.SetEnablePipelineLocking(!p.EnablePipelineLocking()); return nil },
			}, nil
		}

	case ModelTimer:
		switch t.PropName {
		case PropSpec:
			return binding{
				kind: textControl,
				text: func() string {
					if tm := p.Timer(); tm != nil {
						return tm.Spec()
					}
					return ""
				},
				set: func(v string) error {
					switch tm := p.Timer(); {
					case v == "":
						p.ClearTimer()
					case tm == nil:
						p.SetTimer(pipeline.NewTimer(v, false))
					default:
						tm.SetSpec(v)
					}
					return nil
				},
			}, nil
		case PropOnlyOnChanges:
			return binding{
				kind: checkboxControl,
				checked: func() bool {
					tm := p.Timer()
					return tm != nil && tm.OnlyOnChanges()
				},
				toggle: func() error {
					tm := p.Timer()
					if tm == nil {
						return ErrNoTimer
					}
					tm.SetOnlyOnChanges(!tm.OnlyOnChanges())
					return nil
				},
			}, nil
		}

	case ModelParameter:
		param, ok := p.Parameters().Get(t.Key)
		if !ok {
			return binding{}, unknown
		}
		switch t.PropName {
		case PropName:
			return binding{
				kind: textControl,
				text: param.Name,
				set:  func(v string) error { return p.Parameters().Rename(param.Name(), v) },
			}, nil
		case PropValue:
			return binding{
				kind: textControl,
				text: param.Value,
				set:  func(v string) error { param.SetValue(v); return nil },
			}, nil
		}

	case ModelVariable:
		variable, ok := p.EnvironmentVariables().Get(t.Key)
		if !ok {
			return binding{}, unknown
		}
		switch t.PropName {
		case PropName:
			return binding{
				kind: textControl,
				text: variable.Name,
				set:  func(v string) error { return p.EnvironmentVariables().Rename(variable.Name(), v) },
			}, nil
		case PropValue:
			return binding{
				kind: textControl,
				text: variable.Value,
				set: func(v string) error {
					if variable.IsSecure() {
						return variable.SetSecretValue(w.cfg.Sealer, v)
					}
					return variable.SetValue(v)
				},
			}, nil
		case PropSecure:
			return binding{
				kind:    checkboxControl,
				checked: variable.IsSecure,
				toggle: func() error {
					if variable.IsSecure() {
						variable.Unseal()
						return nil
					}
					return variable.Seal(w.cfg.Sealer)
				},
			}, nil
		}
	}
	return binding{}, unknown
}
