// Package formload validates a parsed form tree against the structural
// rules a survey must satisfy before it can be interpreted, and wraps a
// valid tree as an immutable Model (§4.1). Reading the XLSForm wire
// format itself (spreadsheet rows and columns) is out of scope here;
// callers hand Load an already-built *xlsform.Form, typically produced
// by a thin format-specific adapter.
package formload

import "github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"

// Model is a form tree that has passed every structural check. Nothing
// outside this package can construct one directly, so holding a *Model
// is a guarantee the interpreter can walk it without re-checking.
type Model struct {
	Form *xlsform.Form
}

// Element looks up a node by name.
func (m *Model) Element(name string) (*xlsform.Node, bool) {
	return m.Form.ByName(name)
}

// Load validates form and wraps it as a Model, or returns the first
// structural defect found. Checks run in a fixed order so the same
// invalid form always reports the same error (no nested repeats, no
// unbounded repeats, only supported question types, only resolvable
// function references).
func Load(form *xlsform.Form) (*Model, error) {
	if err := checkNoNestedRepeats(form); err != nil {
		return nil, err
	}
	if err := checkBoundedRepeats(form); err != nil {
		return nil, err
	}
	if err := checkSupportedQuestionTypes(form); err != nil {
		return nil, err
	}
	if err := checkFunctionReferences(form); err != nil {
		return nil, err
	}
	return &Model{Form: form}, nil
}
