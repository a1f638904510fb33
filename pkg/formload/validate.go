package formload

import (
	"strings"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/expr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"
)

// checkNoNestedRepeats rejects a form where a repeat contains another
// repeat anywhere among its descendants, matching
// XLSFormReader._check_nested_repeat.
func checkNoNestedRepeats(form *xlsform.Form) error {
	var walk func(index int, insideRepeat bool) error
	walk = func(index int, insideRepeat bool) error {
		n := form.Node(index)
		if n.Kind == xlsform.KindRepeat {
			if insideRepeat {
				return apperr.NewFormInvalid("repeat %q is nested inside another repeat", n.Name)
			}
			insideRepeat = true
		}
		for _, c := range n.Children {
			if err := walk(c, insideRepeat); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(form.RootIndex, false)
}

// checkBoundedRepeats rejects a repeat with no jr:count control,
// matching XLSFormReader._check_infinite_repeat. A repeat with no bound
// on its iteration count has no way for the interpreter's repeat exit
// check to ever fire.
func checkBoundedRepeats(form *xlsform.Form) error {
	for i := range form.Nodes {
		n := &form.Nodes[i]
		if n.Kind == xlsform.KindRepeat && n.Control.Count == "" {
			return apperr.NewFormInvalid("repeat %q has no bounded iteration count", n.Name)
		}
	}
	return nil
}

// checkSupportedQuestionTypes rejects any question node whose type is
// not in xlsform.SupportedQuestionTypes, matching
// XLSFormReader._check_supported_question.
func checkSupportedQuestionTypes(form *xlsform.Form) error {
	for i := range form.Nodes {
		n := &form.Nodes[i]
		if n.Kind == xlsform.KindQuestion && !xlsform.SupportedQuestionTypes[n.QType] {
			return apperr.NewFormInvalid("question %q has unsupported type %q", n.Name, n.QType)
		}
	}
	return nil
}

// checkFunctionReferences rejects a form that references an XLSForm
// function with no host implementation anywhere in a relevant,
// constraint, calculate, or repeat count formula, matching
// XLSFormReader._check_functions.
func checkFunctionReferences(form *xlsform.Form) error {
	for i := range form.Nodes {
		n := &form.Nodes[i]
		formulas := []string{n.Bind.Relevant, n.Bind.Constraint, n.Bind.Calculate, n.Control.Count}
		for _, formula := range formulas {
			if formula == "" {
				continue
			}
			for _, name := range expr.FunctionNamesIn(formula) {
				if _, ok := expr.Functions[strings.NewReplacer(":", "_", "-", "_").Replace(name)]; !ok {
					return &apperr.UnsupportedFunctionError{Name: name}
				}
			}
		}
	}
	return nil
}
