// Package xlsform defines the in-memory form tree that the survey
// interpreter walks: an arena of nodes addressed by integer index, with
// parent pointers stored alongside rather than as owning references
// (design note §9 — avoids cyclic Go pointers between parent and child).
package xlsform

import "sort"

// Kind classifies a node in the form tree.
type Kind int

const (
	// KindRoot is the single survey root; it has no sibling or parent.
	KindRoot Kind = iota
	// KindGroup is a non-repeating container.
	KindGroup
	// KindRepeat is a container iterated a bounded, respondent-controlled
	// number of times.
	KindRepeat
	// KindCalculate is a non-display expression node.
	KindCalculate
	// KindNote is a display-only node with no stored response.
	KindNote
	// KindQuestion is an input node of one of the QuestionType kinds.
	KindQuestion
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindGroup:
		return "group"
	case KindRepeat:
		return "repeat"
	case KindCalculate:
		return "calculate"
	case KindNote:
		return "note"
	case KindQuestion:
		return "question"
	default:
		return "unknown"
	}
}

// QuestionType enumerates the supported input kinds for KindQuestion
// nodes (§3).
type QuestionType string

const (
	Text         QuestionType = "text"
	Integer      QuestionType = "integer"
	Decimal      QuestionType = "decimal"
	Date         QuestionType = "date"
	DateTime     QuestionType = "datetime"
	SelectOne    QuestionType = "select_one"
	SelectAll    QuestionType = "select_all_that_apply"
)

// SupportedQuestionTypes is the allow-list the Form Loader validates
// question nodes against.
var SupportedQuestionTypes = map[QuestionType]bool{
	Text:      true,
	Integer:   true,
	Decimal:   true,
	Date:      true,
	DateTime:  true,
	SelectOne: true,
	SelectAll: true,
}

// Text holds either a plain string or a language-keyed mapping of
// localized strings, mirroring the XLSForm convention that label/hint/
// constraint_message fields can be either (§3).
type Text struct {
	Plain     string
	Localized map[string]string
}

// IsZero reports whether the text field was never set (an empty plain
// string and no localized variants).
func (t Text) IsZero() bool {
	return t.Plain == "" && len(t.Localized) == 0
}

// IsLocalized reports whether this text carries a per-language mapping
// rather than a single plain string.
func (t Text) IsLocalized() bool {
	return t.Localized != nil
}

// LanguageOptions returns the language codes available for this text, or
// nil if the text is a plain (non-localized) string.
func (t Text) LanguageOptions() []string {
	if t.Localized == nil {
		return nil
	}
	opts := make([]string, 0, len(t.Localized))
	for lang := range t.Localized {
		opts = append(opts, lang)
	}
	return opts
}

// PlainText wraps a non-localized string field.
func PlainText(s string) Text { return Text{Plain: s} }

// Choice is a single option of a select-one/select-all question.
type Choice struct {
	Name  string
	Label Text
}

// Bind bundles the XLSForm "bind" attributes recognized by this
// implementation (§3).
type Bind struct {
	Relevant          string
	Constraint        string
	ConstraintMessage Text
	Required          bool
	Calculate         string
}

// Control bundles the XLSForm "control" attributes recognized by this
// implementation. Count is only meaningful for KindRepeat nodes.
type Control struct {
	Count string
}

// Node is one element of the form tree.
type Node struct {
	Index    int
	Parent   int // -1 for the root
	Name     string
	Kind     Kind
	QType    QuestionType // only meaningful when Kind == KindQuestion
	Label    Text
	Hint     Text
	Bind     Bind
	Control  Control
	Choices  []Choice
	Children []int
}

// IsSection reports whether the node is a container (group, repeat, or
// root) as opposed to a leaf question/note/calculate node.
func (n *Node) IsSection() bool {
	return n.Kind == KindRoot || n.Kind == KindGroup || n.Kind == KindRepeat
}

// ToShow reports whether nodes of this kind are ever displayed to the
// respondent. Calculates, groups, repeats, and the root are traversed
// silently (§4.4).
func (n *Node) ToShow() bool {
	return n.Kind == KindQuestion || n.Kind == KindNote
}

// Form is the immutable, validated form tree plus a flat name lookup
// table built by the Form Loader (§4.1).
type Form struct {
	Nodes           []Node
	RootIndex       int
	DefaultLanguage string
	// Languages is the union of every language key found across the
	// form's label, hint, and constraint_message text, sorted. A form
	// whose text is entirely plain (non-localized) has an empty
	// Languages.
	Languages []string

	byName map[string]int
}

// NewForm builds a Form from a fully populated node arena. index 0 of
// nodes must be the survey root; Parent/Children indices must already be
// consistent. NewForm does not perform the structural validation the
// Form Loader is responsible for — it only builds the lookup table and
// fails on duplicate names, which the loader treats as a bug in the
// upstream adapter rather than a user-facing form defect.
func NewForm(nodes []Node, rootIndex int, defaultLanguage string) (*Form, error) {
	f := &Form{
		Nodes:           nodes,
		RootIndex:       rootIndex,
		DefaultLanguage: defaultLanguage,
		byName:          make(map[string]int, len(nodes)),
	}
	langs := make(map[string]bool)
	for i := range nodes {
		n := &nodes[i]
		if _, dup := f.byName[n.Name]; dup {
			return nil, &duplicateNameError{Name: n.Name}
		}
		f.byName[n.Name] = n.Index
		for _, t := range [...]Text{n.Label, n.Hint, n.Bind.ConstraintMessage} {
			for _, l := range t.LanguageOptions() {
				langs[l] = true
			}
		}
	}
	if len(langs) > 0 {
		f.Languages = make([]string, 0, len(langs))
		for l := range langs {
			f.Languages = append(f.Languages, l)
		}
		sort.Strings(f.Languages)
	}
	return f, nil
}

type duplicateNameError struct{ Name string }

func (e *duplicateNameError) Error() string {
	return "duplicate survey element name: " + e.Name
}

// Root returns the survey root node.
func (f *Form) Root() *Node { return &f.Nodes[f.RootIndex] }

// Node returns the node with the given index.
func (f *Form) Node(index int) *Node { return &f.Nodes[index] }

// ByName looks up a node by its unique name.
func (f *Form) ByName(name string) (*Node, bool) {
	idx, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return &f.Nodes[idx], true
}

// Descendants returns every node reachable from (and including) the
// given node index, in pre-order.
func (f *Form) Descendants(index int) []*Node {
	var out []*Node
	var walk func(i int)
	walk = func(i int) {
		n := &f.Nodes[i]
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(index)
	return out
}

// NextSibling returns the immediate next sibling of the node at index,
// walking up the parent chain on exhaustion (§4.4). A repeat's
// exhaustion returns the repeat itself; the root returns itself.
func (f *Form) NextSibling(index int) *Node {
	n := &f.Nodes[index]
	if index == f.RootIndex {
		return n
	}
	parent := &f.Nodes[n.Parent]
	pos := -1
	for i, c := range parent.Children {
		if c == index {
			pos = i
			break
		}
	}
	if pos >= 0 && pos+1 < len(parent.Children) {
		return &f.Nodes[parent.Children[pos+1]]
	}
	if parent.Kind == KindRepeat {
		return parent
	}
	return f.NextSibling(parent.Index)
}
