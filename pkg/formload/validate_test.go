package formload

import (
	"errors"
	"testing"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/xlsform"
)

func buildValidForm(t *testing.T) *xlsform.Form {
	t.Helper()
	nodes := []xlsform.Node{
		{Index: 0, Parent: -1, Name: "__survey__", Kind: xlsform.KindRoot, Children: []int{1, 2}},
		{Index: 1, Parent: 0, Name: "age", Kind: xlsform.KindQuestion, QType: xlsform.Integer},
		{
			Index: 2, Parent: 0, Name: "kids", Kind: xlsform.KindRepeat,
			Control:  xlsform.Control{Count: "3"},
			Children: []int{3},
		},
		{Index: 3, Parent: 2, Name: "kid_name", Kind: xlsform.KindQuestion, QType: xlsform.Text},
	}
	form, err := xlsform.NewForm(nodes, 0, "en")
	if err != nil {
		t.Fatal(err)
	}
	return form
}

func TestLoad_ValidForm(t *testing.T) {
	form := buildValidForm(t)
	model, err := Load(form)
	if err != nil {
		t.Fatalf("expected valid form to load, got %v", err)
	}
	if _, ok := model.Element("kid_name"); !ok {
		t.Fatal("expected to find kid_name element")
	}
}

func TestLoad_NestedRepeatRejected(t *testing.T) {
	nodes := []xlsform.Node{
		{Index: 0, Parent: -1, Name: "__survey__", Kind: xlsform.KindRoot, Children: []int{1}},
		{Index: 1, Parent: 0, Name: "outer", Kind: xlsform.KindRepeat, Control: xlsform.Control{Count: "2"}, Children: []int{2}},
		{Index: 2, Parent: 1, Name: "inner", Kind: xlsform.KindRepeat, Control: xlsform.Control{Count: "2"}, Children: []int{3}},
		{Index: 3, Parent: 2, Name: "leaf", Kind: xlsform.KindQuestion, QType: xlsform.Text},
	}
	form, err := xlsform.NewForm(nodes, 0, "en")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(form); err == nil {
		t.Fatal("expected nested repeat to be rejected")
	}
}

func TestLoad_UnboundedRepeatRejected(t *testing.T) {
	nodes := []xlsform.Node{
		{Index: 0, Parent: -1, Name: "__survey__", Kind: xlsform.KindRoot, Children: []int{1}},
		{Index: 1, Parent: 0, Name: "kids", Kind: xlsform.KindRepeat, Children: []int{2}},
		{Index: 2, Parent: 1, Name: "kid_name", Kind: xlsform.KindQuestion, QType: xlsform.Text},
	}
	form, err := xlsform.NewForm(nodes, 0, "en")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(form); err == nil {
		t.Fatal("expected unbounded repeat to be rejected")
	}
}

func TestLoad_UnsupportedQuestionTypeRejected(t *testing.T) {
	nodes := []xlsform.Node{
		{Index: 0, Parent: -1, Name: "__survey__", Kind: xlsform.KindRoot, Children: []int{1}},
		{Index: 1, Parent: 0, Name: "photo", Kind: xlsform.KindQuestion, QType: xlsform.QuestionType("image")},
	}
	form, err := xlsform.NewForm(nodes, 0, "en")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(form); err == nil {
		t.Fatal("expected unsupported question type to be rejected")
	}
}

func TestLoad_UnsupportedFunctionRejected(t *testing.T) {
	nodes := []xlsform.Node{
		{Index: 0, Parent: -1, Name: "__survey__", Kind: xlsform.KindRoot, Children: []int{1}},
		{
			Index: 1, Parent: 0, Name: "age", Kind: xlsform.KindQuestion, QType: xlsform.Integer,
			Bind: xlsform.Bind{Relevant: "pycall('x')"},
		},
	}
	form, err := xlsform.NewForm(nodes, 0, "en")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Load(form)
	if err == nil {
		t.Fatal("expected unsupported function to be rejected")
	}
	var unsupported *apperr.UnsupportedFunctionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFunctionError, got %T: %v", err, err)
	}
	if unsupported.Name != "pycall" {
		t.Fatalf("expected pycall, got %q", unsupported.Name)
	}
}
