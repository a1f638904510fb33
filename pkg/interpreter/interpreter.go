// Package interpreter walks a validated form tree against a respondent's
// session, the way SurveyProcessor does in the original implementation:
// computing what the respondent should see next, enforcing relevance and
// constraint rules, and folding repeat iterations' values into the final
// response (§4.4).
package interpreter

import (
	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/expr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/formload"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/session"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"
)

// RosterLookup resolves a roster-derived attribute of the respondent
// running this session, for the pulldata() formula function. With a nil
// lookup every attribute reads as missing, so pulldata() returns its
// default argument.
type RosterLookup func(attr string) (string, bool)

// Interpreter is the state machine for one respondent's survey session.
// It is cheap to construct and holds no state of its own beyond the
// Model, Session and Roster it was built with; all mutable progress lives in
// Session, so an Interpreter can be rebuilt on every request without
// losing anything.
type Interpreter struct {
	Model   *formload.Model
	Session *session.State
	Roster  RosterLookup
}

// New builds an Interpreter over a validated form and a session. Roster
// may be nil.
func New(model *formload.Model, sess *session.State, roster RosterLookup) *Interpreter {
	return &Interpreter{Model: model, Session: sess, Roster: roster}
}

func (it *Interpreter) form() *xlsform.Form { return it.Model.Form }

func (it *Interpreter) currentIndex() int {
	if idx, ok := it.Session.CurrentVisit(); ok {
		return idx
	}
	return it.form().RootIndex
}

// CurrentNode returns the element the respondent is currently looking
// at (or the root, before the survey has started).
func (it *Interpreter) CurrentNode() *xlsform.Node {
	return it.form().Node(it.currentIndex())
}

// CurrentName returns the current element's name.
func (it *Interpreter) CurrentName() string { return it.CurrentNode().Name }

// CountVisits returns how many times the named element has been visited
// so far, matching SurveySession.count_visits. Position and SurveyEnd
// are computed from the repeat-iteration and visit-cursor bookkeeping
// directly rather than through this accessor, but it is exposed in its
// own right since forms may reference the same visit count the original
// engine's count_visits exposed.
func (it *Interpreter) CountVisits(name string) int {
	n, ok := it.form().ByName(name)
	if !ok {
		return 0
	}
	return it.Session.CountVisitsOf(n.Index)
}

// SurveyStart reports whether the respondent has not yet taken a single
// step into the survey.
func (it *Interpreter) SurveyStart() bool { return it.Session.CountVisits() == 0 }

// SurveyEnd reports whether the respondent has walked off the end of
// the survey (every element visited or skipped).
func (it *Interpreter) SurveyEnd() bool {
	return it.Session.CountVisits() > 0 && it.currentIndex() == it.form().RootIndex
}

// CurrentType returns the current element's question type. It is only
// meaningful when CurrentNode().Kind == xlsform.KindQuestion.
func (it *Interpreter) CurrentType() xlsform.QuestionType { return it.CurrentNode().QType }

// CurrentRequired reports whether the current element must be answered
// before advancing.
func (it *Interpreter) CurrentRequired() bool { return it.CurrentNode().Bind.Required }

// CurrentToShow reports whether the current element is ever
// display-worthy (questions and notes, not groups/repeats/calculates).
func (it *Interpreter) CurrentToShow() bool { return it.CurrentNode().ToShow() }

// CurrentRelevant evaluates the current element's relevance formula
// against the session's stored responses.
func (it *Interpreter) CurrentRelevant() (bool, error) { return it.Relevant(it.CurrentNode()) }

// Relevant evaluates a node's relevance formula. A node with no
// relevant formula is always relevant.
func (it *Interpreter) Relevant(n *xlsform.Node) (bool, error) {
	if n.Bind.Relevant == "" {
		return true, nil
	}
	v, err := it.evalFormula(n.Bind.Relevant)
	if err != nil {
		return false, err
	}
	return expr.Truthy(v), nil
}

// CurrentLabel resolves the current element's label text in the
// session's selected language.
func (it *Interpreter) CurrentLabel() (string, error) {
	return xlsform.Resolve(it.CurrentNode().Label, it.Session.Language(), it.lookup)
}

// CurrentHint resolves the current element's hint text in the
// session's selected language.
func (it *Interpreter) CurrentHint() (string, error) {
	return xlsform.Resolve(it.CurrentNode().Hint, it.Session.Language(), it.lookup)
}

// CurrentConstraintMessage resolves the current element's constraint
// violation message in the session's selected language.
func (it *Interpreter) CurrentConstraintMessage() (string, error) {
	return xlsform.Resolve(it.CurrentNode().Bind.ConstraintMessage, it.Session.Language(), it.lookup)
}

// ResolvedChoice is a select-one/select-all option with its label
// resolved to the session's selected language.
type ResolvedChoice struct {
	Name  string
	Label string
}

// CurrentChoices resolves every choice option of the current element,
// if it has any.
func (it *Interpreter) CurrentChoices() ([]ResolvedChoice, error) {
	n := it.CurrentNode()
	out := make([]ResolvedChoice, 0, len(n.Choices))
	for _, c := range n.Choices {
		label, err := xlsform.Resolve(c.Label, it.Session.Language(), it.lookup)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedChoice{Name: c.Name, Label: label})
	}
	return out, nil
}

// LanguageOptions returns the survey's available languages.
func (it *Interpreter) LanguageOptions() []string { return it.form().Languages }

// SetLanguage records the respondent's language choice. It returns
// apperr.ErrLanguageMissing if lang is not one of the survey's
// available languages (when the survey declares any at all).
func (it *Interpreter) SetLanguage(lang string) error {
	if len(it.form().Languages) > 0 {
		found := false
		for _, l := range it.form().Languages {
			if l == lang {
				found = true
				break
			}
		}
		if !found {
			return apperr.ErrLanguageMissing
		}
	}
	it.Session.SetLanguage(lang)
	return nil
}

// SetEnumeratorUUID records the enumerator conducting this session.
func (it *Interpreter) SetEnumeratorUUID(id string) { it.Session.SetEnumeratorUUID(id) }

// ClearData resets the session entirely, as when a respondent restarts.
func (it *Interpreter) ClearData() { it.Session.Clear() }

// lookup adapts GetValue to xlsform.ValueLookup's (value, ok) shape for
// text interpolation.
func (it *Interpreter) lookup(name string) (any, bool) {
	v, err := it.GetValue(name)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (it *Interpreter) evalFormula(formula string) (any, error) {
	ast, err := expr.Parse(formula)
	if err != nil {
		return nil, err
	}
	return expr.Eval(ast, it)
}

// expr.Context implementation.

// CurrentValue returns the stored value of the element the respondent
// is currently on.
func (it *Interpreter) CurrentValue() (any, error) { return it.GetValue(it.CurrentName()) }

// GetValue returns the stored response value for a named element.
func (it *Interpreter) GetValue(name string) (any, error) {
	v, ok := it.Session.RetrieveResponse(name)
	if !ok {
		return nil, apperr.ErrValueMissing
	}
	return v, nil
}

// Position returns the respondent's 1-based iteration index within the
// nearest enclosing repeat, or 0 outside of any repeat.
func (it *Interpreter) Position() int {
	repeat := it.nearestEnclosingRepeat(it.CurrentNode())
	if repeat == nil {
		return 0
	}
	return len(it.Session.RepeatValues(iterKey(repeat)))
}

// RespondentAttr resolves a roster-derived attribute via Roster.
func (it *Interpreter) RespondentAttr(name string) (string, bool) {
	if it.Roster == nil {
		return "", false
	}
	return it.Roster(name)
}

// SetValue records a new response for the current element, enforcing
// its constraint formula if it has one. A rejected value is reverted to
// whatever was stored before the call (§4.4, "tentative write then
// revert").
func (it *Interpreter) SetValue(value any) error {
	n := it.CurrentNode()
	prev, hadPrev := it.Session.RetrieveResponse(n.Name)
	it.Session.StoreResponse(n.Name, value)

	if n.Bind.Constraint == "" {
		return nil
	}

	ok, err := it.evalFormula(n.Bind.Constraint)
	if err != nil {
		it.revert(n.Name, prev, hadPrev)
		return err
	}
	if !expr.Truthy(ok) {
		it.revert(n.Name, prev, hadPrev)
		msg, _ := it.CurrentConstraintMessage()
		return &apperr.ConstraintViolatedError{Element: n.Name, Message: msg}
	}
	return nil
}

func (it *Interpreter) revert(name string, prev any, hadPrev bool) {
	if hadPrev {
		it.Session.StoreResponse(name, prev)
	} else {
		it.Session.StoreResponse(name, nil)
	}
}
