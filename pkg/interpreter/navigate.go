package interpreter

import (
	"time"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/expr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/metrics"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"
)

func iterKey(repeat *xlsform.Node) string { return repeat.Name + "::__iter__" }

func repeatFieldKey(repeat *xlsform.Node, leafName string) string {
	return repeat.Name + "::" + leafName
}

// nearestEnclosingRepeat walks up from n's parent chain and returns the
// closest ancestor repeat, or nil if n is not inside one. formload
// rejects nested repeats, so there is never more than one to find.
func (it *Interpreter) nearestEnclosingRepeat(n *xlsform.Node) *xlsform.Node {
	for n.Parent != -1 {
		p := it.form().Node(n.Parent)
		if p.Kind == xlsform.KindRepeat {
			return p
		}
		n = p
	}
	return nil
}

// descendantLeafNames returns the question and calculate names directly
// or transitively inside a repeat — the variables whose values get
// snapshotted per iteration.
func (it *Interpreter) descendantLeafNames(repeat *xlsform.Node) []string {
	var names []string
	for _, d := range it.form().Descendants(repeat.Index) {
		if d.Index == repeat.Index {
			continue
		}
		if d.Kind == xlsform.KindQuestion || d.Kind == xlsform.KindCalculate {
			names = append(names, d.Name)
		}
	}
	return names
}

func (it *Interpreter) isDescendantOf(index, ancestorIndex int) bool {
	n := it.form().Node(index)
	for {
		if n.Index == ancestorIndex {
			return true
		}
		if n.Parent == -1 {
			return false
		}
		n = it.form().Node(n.Parent)
	}
}

// Next advances the respondent to the next display-worthy element,
// silently executing calculates and skipping non-relevant or container
// nodes along the way, and handling repeat iteration as it goes (§4.4).
// It returns apperr.ErrValueMissing without moving if the current
// element is a required question with no stored answer yet.
func (it *Interpreter) Next() error {
	start := time.Now()
	defer func() { metrics.AdvanceDuration.Observe(time.Since(start).Seconds()) }()

	cur := it.CurrentNode()
	if cur.Kind == xlsform.KindQuestion && cur.Bind.Required {
		if _, ok := it.Session.RetrieveResponse(cur.Name); !ok {
			return apperr.ErrValueMissing
		}
	}

	for {
		cur := it.CurrentNode()
		candidate, err := it.advance(cur)
		if err != nil {
			return err
		}

		if candidate.Index == it.form().RootIndex {
			it.Session.AddVisit(candidate.Index)
			return nil
		}

		it.Session.AddVisit(candidate.Index)

		switch candidate.Kind {
		case xlsform.KindCalculate:
			if err := it.executeCalculate(candidate); err != nil {
				return err
			}
			continue
		case xlsform.KindGroup, xlsform.KindRepeat, xlsform.KindRoot:
			continue
		}

		relevant, err := it.Relevant(candidate)
		if err != nil {
			return err
		}
		if !relevant {
			continue
		}
		return nil
	}
}

// advance computes the next node in pre-order from cur: into its first
// child if it has one (deciding whether to iterate again for a repeat),
// otherwise its next sibling per xlsform.NextSibling.
func (it *Interpreter) advance(cur *xlsform.Node) (*xlsform.Node, error) {
	if cur.Kind == xlsform.KindRepeat {
		descend, err := it.enterRepeatDecision(cur)
		if err != nil {
			return nil, err
		}
		if descend {
			return it.form().Node(cur.Children[0]), nil
		}
		return it.form().NextSibling(cur.Index), nil
	}
	if len(cur.Children) > 0 {
		return it.form().Node(cur.Children[0]), nil
	}
	return it.form().NextSibling(cur.Index), nil
}

// enterRepeatDecision is called every time traversal lands on a repeat
// node, whether arriving fresh from outside or bubbling back after
// finishing an iteration. On the latter, it snapshots the
// just-completed iteration's values out of the plain response slots
// and clears them, mirroring the original's snapshot-and-load handling
// of repeat iterations. It returns whether to start (and descend into)
// another iteration.
func (it *Interpreter) enterRepeatDecision(repeat *xlsform.Node) (bool, error) {
	visits := it.Session.AllVisits()
	cameFromInside := false
	if len(visits) >= 2 {
		prevIdx := visits[len(visits)-2]
		if prevIdx != repeat.Index && it.isDescendantOf(prevIdx, repeat.Index) {
			cameFromInside = true
		}
	}
	if cameFromInside {
		it.snapshotIteration(repeat)
	}

	maxIter, err := it.evalCount(repeat)
	if err != nil {
		return false, err
	}
	it.cleanObsoleteRepeatResponses(repeat, maxIter)

	done := len(it.Session.RepeatValues(iterKey(repeat)))
	if done >= maxIter {
		return false, nil
	}
	it.Session.AppendRepeatValue(iterKey(repeat), true)
	return true, nil
}

// cleanObsoleteRepeatResponses truncates a repeat's completed-iteration
// history down to maxIter whenever the count formula now evaluates
// lower than it did on a previous pass — e.g. the respondent filled 3
// iterations, backed up, and changed the count driving the repeat down
// to 1 (§8, "repeat truncation").
func (it *Interpreter) cleanObsoleteRepeatResponses(repeat *xlsform.Node, maxIter int) {
	if iv := it.Session.RepeatValues(iterKey(repeat)); len(iv) > maxIter {
		it.Session.TruncateRepeatValues(iterKey(repeat), maxIter)
	}
	for _, name := range it.descendantLeafNames(repeat) {
		key := repeatFieldKey(repeat, name)
		if vals := it.Session.RepeatValues(key); len(vals) > maxIter {
			it.Session.TruncateRepeatValues(key, maxIter)
		}
	}
}

func (it *Interpreter) evalCount(repeat *xlsform.Node) (int, error) {
	v, err := it.evalFormula(repeat.Control.Count)
	if err != nil {
		return 0, err
	}
	return int(expr.AsFloat(v)), nil
}

// snapshotIteration moves the current, just-finished iteration's plain
// response values into the repeat's per-variable history and clears the
// plain slots for the next iteration.
func (it *Interpreter) snapshotIteration(repeat *xlsform.Node) {
	for _, name := range it.descendantLeafNames(repeat) {
		v, _ := it.Session.RetrieveResponse(name)
		it.Session.AppendRepeatValue(repeatFieldKey(repeat, name), v)
		it.Session.StoreResponse(name, nil)
	}
}

// undoLastIteration reverses snapshotIteration for the most recently
// completed iteration, restoring its values into the plain slots so
// the respondent can edit them again after backing up into the repeat.
func (it *Interpreter) undoLastIteration(repeat *xlsform.Node) {
	names := it.descendantLeafNames(repeat)
	completed := 0
	for _, name := range names {
		key := repeatFieldKey(repeat, name)
		vals := it.Session.RepeatValues(key)
		completed = len(vals)
		if len(vals) == 0 {
			it.Session.StoreResponse(name, nil)
			continue
		}
		it.Session.StoreResponse(name, vals[len(vals)-1])
		it.Session.TruncateRepeatValues(key, len(vals)-1)
	}
	if iv := it.Session.RepeatValues(iterKey(repeat)); len(iv) > completed {
		it.Session.TruncateRepeatValues(iterKey(repeat), len(iv)-1)
	}
}

// Back retreats the respondent to the previous display-worthy element
// by replaying the visit history backward, undoing any repeat iteration
// it steps out of along the way. It is a no-op at the start of the
// survey.
func (it *Interpreter) Back() error {
	for {
		poppedIdx, ok := it.Session.DropLatestVisit()
		if !ok {
			return nil
		}
		popped := it.form().Node(poppedIdx)
		if popped.Kind == xlsform.KindRepeat {
			it.undoLastIteration(popped)
		}

		curIdx, ok := it.Session.CurrentVisit()
		if !ok {
			return nil
		}
		node := it.form().Node(curIdx)
		if node.Kind == xlsform.KindQuestion || node.Kind == xlsform.KindNote {
			return nil
		}
	}
}

// executeCalculate evaluates a calculate node's formula and stores it
// as a plain response value, the same slot a question of the same name
// would use — including while inside a repeat, where snapshotIteration
// picks it up like any other descendant leaf.
func (it *Interpreter) executeCalculate(n *xlsform.Node) error {
	v, err := it.evalFormula(n.Bind.Calculate)
	if err != nil {
		return err
	}
	it.Session.StoreResponse(n.Name, v)
	return nil
}
