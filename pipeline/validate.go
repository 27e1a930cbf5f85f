// ABOUTME: Validation rules applied before a pipeline config is saved.
// ABOUTME: Reports every failing field at once through a ValidationError.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 255

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)
	labelToken   = regexp.MustCompile(`\$\{[^}]+\}`)
	approvalKind = map[ApprovalType]bool{ApprovalSuccess: true, ApprovalManual: true}
)

// Validate checks a pipeline against the save-time rules and returns a
// *ValidationError listing every problem, or nil.
func Validate(p *Pipeline) error {
	verr := &ValidationError{}

	switch {
	case p.name == "":
		verr.add("name", "name is required")
	case len(p.name) > maxNameLength:
		verr.add("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	case !namePattern.MatchString(p.name):
		verr.add("name", "name may only contain letters, digits, '-', '_' and '.'")
	}

	if !labelToken.MatchString(p.labelTemplate) {
		verr.add("label_template", "label template must contain at least one ${...} token, e.g. ${COUNT}")
	}

	if p.timer != nil {
		if strings.TrimSpace(p.timer.spec) == "" {
			verr.add("timer.spec", "timer spec must not be blank")
		} else if _, err := ParseTimerSpec(p.timer.spec); err != nil {
			verr.add("timer.spec", err.Error())
		}
	}

	i := 0
	for param := range p.parameters.All() {
		if param.name == "" {
			verr.add(fmt.Sprintf("parameters[%d].name", i), "parameter name is required")
		} else if !namePattern.MatchString(param.name) {
			verr.add(fmt.Sprintf("parameters[%d].name", i), "parameter name may only contain letters, digits, '-', '_' and '.'")
		}
		i++
	}

	i = 0
	for v := range p.variables.All() {
		if strings.TrimSpace(v.name) == "" {
			verr.add(fmt.Sprintf("environment_variables[%d].name", i), "variable name is required")
		}
		i++
	}

	if _, fromTemplate := p.TemplateName(); fromTemplate {
		if len(p.stages) > 0 {
			verr.add("stages", "a pipeline built from a template cannot define its own stages")
		}
	} else if len(p.stages) == 0 {
		verr.add("stages", "a pipeline needs at least one stage")
	}
	for i, st := range p.stages {
		if st.Name == "" {
			verr.add(fmt.Sprintf("stages[%d].name", i), "stage name is required")
		}
		if !approvalKind[st.Approval] {
			verr.add(fmt.Sprintf("stages[%d].approval", i), fmt.Sprintf("unknown approval type %q", st.Approval))
		}
	}

	if verr.empty() {
		return nil
	}
	return verr
}
