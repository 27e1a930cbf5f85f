// ABOUTME: JSON wire codec for the snake_case pipeline document served by the config API.
// ABOUTME: Decoding maps absent or null fields to defaults and enforces the secure-value discriminator.
package pipeline

import (
	"encoding/json"
	"fmt"
)

type wirePipeline struct {
	Name                  string         `json:"name"`
	LabelTemplate         string         `json:"label_template"`
	EnablePipelineLocking bool           `json:"enable_pipeline_locking"`
	TemplateName          *string        `json:"template_name"`
	Timer                 *wireTimer     `json:"timer,omitempty"`
	Parameters            []wireParam    `json:"parameters"`
	EnvironmentVariables  []wireVariable `json:"environment_variables"`
	Stages                []wireStage    `json:"stages"`
}

type wireTimer struct {
	Spec          string `json:"spec"`
	OnlyOnChanges bool   `json:"only_on_changes"`
}

type wireParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireVariable struct {
	Name           string  `json:"name"`
	Value          *string `json:"value,omitempty"`
	EncryptedValue *string `json:"encryptedValue,omitempty"`
	// encrypted_value is accepted on input for clients that send snake_case throughout.
	EncryptedSnake *string `json:"encrypted_value,omitempty"`
	Secure         bool    `json:"secure"`
}

type wireStage struct {
	Name     string        `json:"name"`
	Approval *wireApproval `json:"approval,omitempty"`
}

type wireApproval struct {
	Type string `json:"type"`
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	sealer Sealer
}

// WithSealer lets Decode accept secure variables sent with plaintext values by
// sealing them before they enter the model.
func WithSealer(s Sealer) DecodeOption {
	return func(o *decodeOptions) { o.sealer = s }
}

// Decode builds a Pipeline from its JSON document. Beyond the secure-value
// discriminator and name uniqueness inside collections, nothing is validated
// here; see Validate.
func Decode(data []byte, opts ...DecodeOption) (*Pipeline, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var w wirePipeline
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	return fromWire(&w, o)
}

func fromWire(w *wirePipeline, o decodeOptions) (*Pipeline, error) {
	p := New(w.Name)
	if w.LabelTemplate != "" {
		p.labelTemplate = w.LabelTemplate
	}
	p.enablePipelineLocking = w.EnablePipelineLocking
	if w.TemplateName != nil {
		p.templateName = *w.TemplateName
	}
	if w.Timer != nil {
		p.timer = NewTimer(w.Timer.Spec, w.Timer.OnlyOnChanges)
	}

	for _, wp := range w.Parameters {
		if err := p.parameters.Add(NewParameter(wp.Name, wp.Value)); err != nil {
			return nil, fmt.Errorf("decode pipeline %q: %w", w.Name, err)
		}
	}

	for _, wv := range w.EnvironmentVariables {
		v, err := variableFromWire(wv, o)
		if err != nil {
			return nil, fmt.Errorf("decode pipeline %q: variable %q: %w", w.Name, wv.Name, err)
		}
		if err := p.variables.Add(v); err != nil {
			return nil, fmt.Errorf("decode pipeline %q: %w", w.Name, err)
		}
	}

	for _, ws := range w.Stages {
		st := Stage{Name: ws.Name, Approval: ApprovalSuccess}
		if ws.Approval != nil && ws.Approval.Type != "" {
			st.Approval = ApprovalType(ws.Approval.Type)
		}
		p.stages = append(p.stages, st)
	}

	return p, nil
}

func variableFromWire(wv wireVariable, o decodeOptions) (*EnvironmentVariable, error) {
	encrypted := wv.EncryptedValue
	if encrypted == nil {
		encrypted = wv.EncryptedSnake
	}

	if !wv.Secure {
		if encrypted != nil && *encrypted != "" {
			return nil, ErrPlainValue
		}
		value := ""
		if wv.Value != nil {
			value = *wv.Value
		}
		return NewPlainVariable(wv.Name, value), nil
	}

	hasPlain := wv.Value != nil && *wv.Value != ""
	hasCipher := encrypted != nil && *encrypted != ""
	switch {
	case hasPlain && hasCipher:
		return nil, ErrAmbiguousValue
	case hasPlain:
		if o.sealer == nil {
			return nil, ErrPlaintextSecret
		}
		sealed, err := o.sealer.Seal(*wv.Value)
		if err != nil {
			return nil, fmt.Errorf("seal value: %w", err)
		}
		return NewSecureVariable(wv.Name, sealed), nil
	case hasCipher:
		return NewSecureVariable(wv.Name, *encrypted), nil
	default:
		return NewSecureVariable(wv.Name, ""), nil
	}
}

func toWire(p *Pipeline) *wirePipeline {
	w := &wirePipeline{
		Name:                  p.name,
		LabelTemplate:         p.labelTemplate,
		EnablePipelineLocking: p.enablePipelineLocking,
		Parameters:            make([]wireParam, 0, p.parameters.Len()),
		EnvironmentVariables:  make([]wireVariable, 0, p.variables.Len()),
		Stages:                make([]wireStage, 0, len(p.stages)),
	}
	if name, ok := p.TemplateName(); ok {
		w.TemplateName = &name
	}
	if p.timer != nil {
		w.Timer = &wireTimer{Spec: p.timer.spec, OnlyOnChanges: p.timer.onlyOnChanges}
	}
	for param := range p.parameters.All() {
		w.Parameters = append(w.Parameters, wireParam{Name: param.name, Value: param.value})
	}
	for v := range p.variables.All() {
		wv := wireVariable{Name: v.name, Secure: v.secure}
		if v.secure {
			enc := v.encryptedValue
			wv.EncryptedValue = &enc
		} else {
			val := v.value
			wv.Value = &val
		}
		w.EnvironmentVariables = append(w.EnvironmentVariables, wv)
	}
	for _, st := range p.stages {
		ws := wireStage{Name: st.Name}
		if st.Approval != "" {
			ws.Approval = &wireApproval{Type: string(st.Approval)}
		}
		w.Stages = append(w.Stages, ws)
	}
	return w
}

// Encode renders the pipeline as its JSON document. Secure variables carry
// only encryptedValue.
func Encode(p *Pipeline) ([]byte, error) {
	return json.Marshal(toWire(p))
}

// MarshalJSON implements json.Marshaler using the wire document shape.
func (p *Pipeline) MarshalJSON() ([]byte, error) {
	return Encode(p)
}

// UnmarshalJSON implements json.Unmarshaler. Secure plaintext is rejected
// because no sealer can be supplied through this path.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}
