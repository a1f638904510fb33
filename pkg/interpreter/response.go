package interpreter

import "github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"

// Response is the final shape a completed survey session is gathered
// into: top-level variable values plus, for every repeat, one value
// list per descendant variable with one entry per completed iteration.
type Response struct {
	Values  map[string]any
	Repeats map[string][]any
}

// GatherSurveyResponse assembles the respondent's complete set of
// answers: every top-level variable that was ever visited, plus every
// repeat's per-iteration values, keyed "repeatName::variableName" (§4.3,
// §4.4). A variable set through some other path but never actually
// visited (for instance a value stored straight into the session for an
// element Next never reached) is excluded, matching the visit/response parity
// invariant. Values belonging to a repeat are never included as
// top-level entries, even if a trailing iteration was left unfinished.
func (it *Interpreter) GatherSurveyResponse() Response {
	values := it.Session.RetrieveAllResponses()
	repeatScoped := make(map[string]bool)

	visited := make(map[string]bool)
	for _, idx := range it.Session.AllVisits() {
		visited[it.form().Node(idx).Name] = true
	}

	repeats := make(map[string][]any)
	for i := range it.form().Nodes {
		n := &it.form().Nodes[i]
		if n.Kind != xlsform.KindRepeat {
			continue
		}
		for _, name := range it.descendantLeafNames(n) {
			repeatScoped[name] = true
			key := repeatFieldKey(n, name)
			if vals := it.Session.RepeatValues(key); len(vals) > 0 {
				repeats[key] = vals
			}
		}
	}

	for name := range values {
		if repeatScoped[name] || !visited[name] {
			delete(values, name)
		}
	}

	return Response{Values: values, Repeats: repeats}
}
