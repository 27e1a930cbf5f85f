// ABOUTME: Tests for decoding and encoding the snake_case pipeline document.
// ABOUTME: Covers defaults for absent fields, the secure discriminator, and duplicate names.
package pipeline_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/pipeline/pipelinetest"
)

type upperSealer struct{}

func (upperSealer) Seal(plain string) (string, error) { return "sealed:" + strings.ToUpper(plain), nil }

func TestDecodeSample(t *testing.T) {
	p := pipelinetest.Sample(t)

	if p.Name() != "yourproject" {
		t.Errorf("Name() = %q, want %q", p.Name(), "yourproject")
	}
	if p.LabelTemplate() != "foo-1.0.${COUNT}-${svn}" {
		t.Errorf("LabelTemplate() = %q", p.LabelTemplate())
	}
	if !p.EnablePipelineLocking() {
		t.Error("expected pipeline locking to be enabled")
	}
	if name, ok := p.TemplateName(); ok {
		t.Errorf("expected no template, got %q", name)
	}
	if p.Timer() == nil {
		t.Fatal("expected a timer")
	}
	if p.Timer().Spec() != "0 0 22 ? * MON-FRI" {
		t.Errorf("timer spec = %q", p.Timer().Spec())
	}
	if !p.Timer().OnlyOnChanges() {
		t.Error("expected only_on_changes to be true")
	}

	names := p.Parameters().Names()
	if len(names) != 2 || names[0] != "COMMAND" || names[1] != "WORKING_DIR" {
		t.Errorf("parameter names = %v", names)
	}

	vars := p.EnvironmentVariables()
	if got := len(vars.Plain()); got != 1 {
		t.Errorf("plain variables = %d, want 1", got)
	}
	if got := len(vars.Secure()); got != 1 {
		t.Errorf("secure variables = %d, want 1", got)
	}
	pw, ok := vars.Get("PASSWORD")
	if !ok {
		t.Fatal("expected PASSWORD variable")
	}
	if pw.Value() != "" {
		t.Errorf("secure variable exposed plaintext %q", pw.Value())
	}
	if pw.EncryptedValue() != "c!ph3rt3xt" {
		t.Errorf("EncryptedValue() = %q", pw.EncryptedValue())
	}

	stages := p.Stages()
	if len(stages) != 1 || stages[0].Approval != pipeline.ApprovalSuccess {
		t.Errorf("stages = %+v", stages)
	}
}

func TestDecodeDefaults(t *testing.T) {
	p, err := pipeline.Decode([]byte(`{"name":"bare"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.LabelTemplate() != pipeline.DefaultLabelTemplate {
		t.Errorf("LabelTemplate() = %q, want default", p.LabelTemplate())
	}
	if p.Timer() != nil {
		t.Error("expected no timer")
	}
	if _, ok := p.TemplateName(); ok {
		t.Error("expected no template")
	}
	if p.Parameters().Len() != 0 || p.EnvironmentVariables().Len() != 0 {
		t.Error("expected empty collections")
	}
}

func TestDecodeEmptyTemplateNameMeansNone(t *testing.T) {
	p, err := pipeline.Decode([]byte(`{"name":"x","template_name":""}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := p.TemplateName(); ok {
		t.Error("empty template_name should mean no template")
	}
}

func TestDecodeDuplicateParameter(t *testing.T) {
	doc := `{"name":"x","parameters":[{"name":"A","value":"1"},{"name":"A","value":"2"}]}`
	_, err := pipeline.Decode([]byte(doc))
	var dup *pipeline.DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNameError, got %v", err)
	}
	if dup.Name != "A" || dup.Collection != "parameters" {
		t.Errorf("unexpected duplicate error %+v", dup)
	}
}

func TestDecodeDuplicateVariable(t *testing.T) {
	doc := `{"name":"x","environment_variables":[{"name":"A","value":"1"},{"name":"A","encryptedValue":"z","secure":true}]}`
	_, err := pipeline.Decode([]byte(doc))
	var dup *pipeline.DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNameError, got %v", err)
	}
}

func TestDecodeSecurePlaintextNeedsSealer(t *testing.T) {
	doc := `{"name":"x","environment_variables":[{"name":"TOKEN","value":"hunter2","secure":true}]}`

	if _, err := pipeline.Decode([]byte(doc)); !errors.Is(err, pipeline.ErrPlaintextSecret) {
		t.Fatalf("expected ErrPlaintextSecret, got %v", err)
	}

	p, err := pipeline.Decode([]byte(doc), pipeline.WithSealer(upperSealer{}))
	if err != nil {
		t.Fatalf("Decode with sealer: %v", err)
	}
	v, _ := p.EnvironmentVariables().Get("TOKEN")
	if !v.IsSecure() || v.EncryptedValue() != "sealed:HUNTER2" || v.Value() != "" {
		t.Errorf("unexpected sealed variable: secure=%v enc=%q value=%q", v.IsSecure(), v.EncryptedValue(), v.Value())
	}
}

func TestDecodeAmbiguousSecureValue(t *testing.T) {
	doc := `{"name":"x","environment_variables":[{"name":"T","value":"a","encryptedValue":"b","secure":true}]}`
	if _, err := pipeline.Decode([]byte(doc), pipeline.WithSealer(upperSealer{})); !errors.Is(err, pipeline.ErrAmbiguousValue) {
		t.Fatalf("expected ErrAmbiguousValue, got %v", err)
	}
}

func TestDecodePlainWithCiphertextRejected(t *testing.T) {
	doc := `{"name":"x","environment_variables":[{"name":"T","encryptedValue":"b","secure":false}]}`
	if _, err := pipeline.Decode([]byte(doc)); !errors.Is(err, pipeline.ErrPlainValue) {
		t.Fatalf("expected ErrPlainValue, got %v", err)
	}
}

func TestDecodeSnakeCaseEncryptedValue(t *testing.T) {
	doc := `{"name":"x","environment_variables":[{"name":"T","encrypted_value":"abc","secure":true}]}`
	p, err := pipeline.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v, _ := p.EnvironmentVariables().Get("T")
	if v.EncryptedValue() != "abc" {
		t.Errorf("EncryptedValue() = %q, want abc", v.EncryptedValue())
	}
}

func TestDecodeManualApproval(t *testing.T) {
	doc := `{"name":"x","stages":[{"name":"deploy","approval":{"type":"manual"}}]}`
	p, err := pipeline.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Stages()[0].Approval != pipeline.ApprovalManual {
		t.Errorf("approval = %q, want manual", p.Stages()[0].Approval)
	}
}

func TestEncodeRoundTripShape(t *testing.T) {
	p := pipelinetest.Sample(t)
	data, err := pipeline.Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal encoded doc: %v", err)
	}
	if doc["template_name"] != nil {
		t.Errorf("template_name = %v, want null", doc["template_name"])
	}
	vars := doc["environment_variables"].([]any)
	secure := vars[1].(map[string]any)
	if _, leaked := secure["value"]; leaked {
		t.Error("secure variable must not carry a value field")
	}
	if secure["encryptedValue"] != "c!ph3rt3xt" {
		t.Errorf("encryptedValue = %v", secure["encryptedValue"])
	}
	plain := vars[0].(map[string]any)
	if _, ok := plain["encryptedValue"]; ok {
		t.Error("plain variable must not carry encryptedValue")
	}

	again, err := pipeline.Decode(data)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if again.Name() != p.Name() || again.Parameters().Len() != 2 || again.Timer().Spec() != p.Timer().Spec() {
		t.Error("re-decoded pipeline differs from the original")
	}
}

func TestPipelineJSONMarshalerUsesWireShape(t *testing.T) {
	p := pipelinetest.Sample(t)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"enable_pipeline_locking":true`) {
		t.Errorf("expected snake_case keys, got %s", data)
	}

	var back pipeline.Pipeline
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if back.Name() != "yourproject" {
		t.Errorf("Name() = %q", back.Name())
	}
}
