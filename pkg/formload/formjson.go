package formload

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"
)

// jsonText accepts either a plain JSON string or an object of
// language->string, mirroring xlsform.Text's two shapes (§3).
type jsonText struct {
	Plain     string
	Localized map[string]string
}

func (t *jsonText) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		t.Plain = plain
		return nil
	}
	var localized map[string]string
	if err := json.Unmarshal(data, &localized); err != nil {
		return err
	}
	t.Localized = localized
	return nil
}

func (t jsonText) toText() xlsform.Text {
	if t.Localized != nil {
		return xlsform.Text{Localized: t.Localized}
	}
	return xlsform.PlainText(t.Plain)
}

type jsonChoice struct {
	Name  string   `json:"name"`
	Label jsonText `json:"label"`
}

type jsonNode struct {
	Name              string       `json:"name"`
	Kind              string       `json:"kind"`
	QType             string       `json:"qtype,omitempty"`
	Label             jsonText     `json:"label,omitempty"`
	Hint              jsonText     `json:"hint,omitempty"`
	Relevant          string       `json:"relevant,omitempty"`
	Constraint        string       `json:"constraint,omitempty"`
	ConstraintMessage jsonText     `json:"constraint_message,omitempty"`
	Required          bool         `json:"required,omitempty"`
	Calculate         string       `json:"calculate,omitempty"`
	Count             string       `json:"count,omitempty"`
	Choices           []jsonChoice `json:"choices,omitempty"`
	Children          []jsonNode   `json:"children,omitempty"`
}

// jsonForm is the demonstration wire format this repo reads form
// definitions from. The XLSForm spreadsheet format itself is a Non-goal
// (§7); this JSON shape exists only to give cmd/surveyd something
// concrete to load without reimplementing a spreadsheet parser.
type jsonForm struct {
	DefaultLanguage string   `json:"default_language"`
	Root            jsonNode `json:"root"`
}

var kindByName = map[string]xlsform.Kind{
	"root":      xlsform.KindRoot,
	"group":     xlsform.KindGroup,
	"repeat":    xlsform.KindRepeat,
	"calculate": xlsform.KindCalculate,
	"note":      xlsform.KindNote,
	"question":  xlsform.KindQuestion,
}

// LoadJSON reads a form definition in this package's demonstration JSON
// format, builds the xlsform.Form node arena, and validates it, returning
// a ready-to-interpret Model.
func LoadJSON(r io.Reader) (*Model, error) {
	var doc jsonForm
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("formload: decode JSON form: %w", err)
	}

	built, err := buildNodes(doc.Root)
	if err != nil {
		return nil, err
	}

	form, err := xlsform.NewForm(built, 0, doc.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("formload: build form tree: %w", err)
	}
	return Load(form)
}

// Node is a type alias so buildNodes can be read without repeatedly
// qualifying xlsform.Node.
type Node = xlsform.Node

func buildNodes(root jsonNode) ([]Node, error) {
	var arena []Node
	var walk func(n jsonNode, parent int) (int, error)
	walk = func(n jsonNode, parent int) (int, error) {
		kind, ok := kindByName[n.Kind]
		if !ok {
			return 0, fmt.Errorf("formload: unknown node kind %q for element %q", n.Kind, n.Name)
		}
		index := len(arena)
		arena = append(arena, Node{
			Index:  index,
			Parent: parent,
			Name:   n.Name,
			Kind:   kind,
			QType:  xlsform.QuestionType(n.QType),
			Label:  n.Label.toText(),
			Hint:   n.Hint.toText(),
			Bind: xlsform.Bind{
				Relevant:          n.Relevant,
				Constraint:        n.Constraint,
				ConstraintMessage: n.ConstraintMessage.toText(),
				Required:          n.Required,
				Calculate:         n.Calculate,
			},
			Control: xlsform.Control{Count: n.Count},
		})
		choices := make([]xlsform.Choice, 0, len(n.Choices))
		for _, c := range n.Choices {
			choices = append(choices, xlsform.Choice{Name: c.Name, Label: c.Label.toText()})
		}
		arena[index].Choices = choices

		children := make([]int, 0, len(n.Children))
		for _, c := range n.Children {
			childIndex, err := walk(c, index)
			if err != nil {
				return 0, err
			}
			children = append(children, childIndex)
		}
		arena[index].Children = children
		return index, nil
	}
	if _, err := walk(root, -1); err != nil {
		return nil, err
	}
	return arena, nil
}
