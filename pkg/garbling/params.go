// Package garbling implements the randomized-response transform applied to
// binary-choice answers at submission time (§4.5): r̃ = r + (1−r)·η for a
// binary response r and a garbling "shock" η, drawn either independently per
// respondent or from a shared, exactly-proportioned block.
package garbling

import (
	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"
)

// Scheme selects how a question's garbling shock is drawn.
type Scheme int

const (
	// IID draws a fresh, independent shock for every respondent.
	IID Scheme = iota
	// PopulationBlock draws from a single shock pool shared by every
	// respondent, keyed by question name.
	PopulationBlock
	// CovariateBlock draws from a shock pool shared only by respondents
	// with the same covariate value, keyed by "<question>::<value>".
	CovariateBlock
)

// RawParam is one row of the form's garbling specification, the way an
// adapter reads it off a dedicated sheet or column before the Form Loader
// ever sees the question node. Covariate is empty for IID, "*" for
// PopulationBlock, or the name of a respondent attribute for CovariateBlock.
type RawParam struct {
	Question  string
	Answer    string
	Rate      float64
	Covariate string
}

// Params is one question's validated, derived garbling configuration.
type Params struct {
	Question  string
	Answer    string
	Rate      float64
	Covariate string
}

// Scheme derives which shock-generation scheme applies, per §3.
func (p Params) Scheme() Scheme {
	switch {
	case p.Covariate == "":
		return IID
	case p.Covariate == "*":
		return PopulationBlock
	default:
		return CovariateBlock
	}
}

// ParseGarblingParams validates a form's raw garbling rows against its
// question tree and returns the per-question lookup table the Garbling
// Engine consumes. It rejects garbling on non-binary-choice questions, an
// answer outside the question's two choice names, a block rate outside the
// fixed allow-list, and garbling inside a repeat (§3).
func ParseGarblingParams(form *xlsform.Form, raw []RawParam) (map[string]Params, error) {
	out := make(map[string]Params, len(raw))
	for _, r := range raw {
		node, ok := form.ByName(r.Question)
		if !ok {
			return nil, apperr.NewFormInvalid("garbling references unknown element %q", r.Question)
		}
		if node.Kind != xlsform.KindQuestion || node.QType != xlsform.SelectOne {
			return nil, apperr.NewFormInvalid("garbling specified for non binary-choice question %q", r.Question)
		}
		if len(node.Choices) != 2 {
			return nil, apperr.NewFormInvalid("garbling specified for non binary-choice question %q", r.Question)
		}
		answerValid := false
		for _, c := range node.Choices {
			if c.Name == r.Answer {
				answerValid = true
				break
			}
		}
		if !answerValid {
			return nil, apperr.NewFormInvalid("%q not in choice options for %q", r.Answer, r.Question)
		}
		if r.Rate < 0 || r.Rate > 1 {
			return nil, apperr.NewFormInvalid("garbling rate for %q must be between 0 and 1", r.Question)
		}
		if insideRepeat(form, node) {
			return nil, apperr.NewFormInvalid("garbling must not be applied inside a repeat: %q", r.Question)
		}
		p := Params{Question: r.Question, Answer: r.Answer, Rate: r.Rate, Covariate: r.Covariate}
		if p.Scheme() != IID && !AllowedBlockRates[r.Rate] {
			return nil, apperr.NewFormInvalid(
				"block garbling for %q must use one of the supported rates", r.Question,
			)
		}
		out[r.Question] = p
	}
	return out, nil
}

func insideRepeat(form *xlsform.Form, n *xlsform.Node) bool {
	for n.Parent != -1 {
		parent := form.Node(n.Parent)
		if parent.Kind == xlsform.KindRepeat {
			return true
		}
		n = parent
	}
	return false
}
