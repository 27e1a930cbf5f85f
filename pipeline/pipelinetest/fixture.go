// ABOUTME: Shared pipeline document fixtures for tests across the model, view, store, and web packages.
// ABOUTME: SampleJSON mirrors the wire document the configuration view is exercised against.
package pipelinetest

import (
	"testing"

	"github.com/2389-research/pipeconf/pipeline"
)

// SampleJSON is a pipeline named "yourproject" with a timer, two parameters,
// one plain and one secure environment variable, and no template.
const SampleJSON = `{
  "name": "yourproject",
  "label_template": "foo-1.0.${COUNT}-${svn}",
  "enable_pipeline_locking": true,
  "template_name": null,
  "timer": {
    "spec": "0 0 22 ? * MON-FRI",
    "only_on_changes": true
  },
  "parameters": [
    {"name": "COMMAND", "value": "echo"},
    {"name": "WORKING_DIR", "value": "/repo/branch"}
  ],
  "environment_variables": [
    {"name": "USERNAME", "value": "bob", "secure": false},
    {"name": "PASSWORD", "encryptedValue": "c!ph3rt3xt", "secure": true}
  ],
  "stages": [
    {"name": "BuildLinux"}
  ]
}`

// TemplatedJSON is a pipeline built from a template, with no timer and no stages.
const TemplatedJSON = `{
  "name": "from-template",
  "label_template": "${COUNT}",
  "enable_pipeline_locking": false,
  "template_name": "build-and-deploy",
  "parameters": [],
  "environment_variables": [],
  "stages": []
}`

// Sample decodes SampleJSON, failing the test on error.
func Sample(t testing.TB) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.Decode([]byte(SampleJSON))
	if err != nil {
		t.Fatalf("decode sample pipeline: %v", err)
	}
	return p
}

// Named returns a valid single-stage pipeline with the given name.
func Named(t testing.TB, name string) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New(name)
	p.SetStages([]pipeline.Stage{{Name: "build", Approval: pipeline.ApprovalSuccess}})
	return p
}
