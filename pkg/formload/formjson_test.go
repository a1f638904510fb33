package formload

import (
	"strings"
	"testing"
)

func TestLoadJSON_ValidForm(t *testing.T) {
	doc := `{
		"default_language": "en",
		"root": {
			"name": "root",
			"kind": "root",
			"children": [
				{
					"name": "risky",
					"kind": "question",
					"qtype": "select_one",
					"label": "Did you do the risky thing?",
					"choices": [
						{"name": "yes", "label": "Yes"},
						{"name": "no", "label": "No"}
					]
				},
				{
					"name": "visits",
					"kind": "repeat",
					"count": "3",
					"children": [
						{"name": "visit_note", "kind": "note", "label": "Visit ${position}"}
					]
				}
			]
		}
	}`

	model, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if _, ok := model.Element("risky"); !ok {
		t.Fatal("expected element 'risky' to be present")
	}
	if _, ok := model.Element("visits"); !ok {
		t.Fatal("expected element 'visits' to be present")
	}
}

func TestLoadJSON_LocalizedLabel(t *testing.T) {
	doc := `{
		"default_language": "en",
		"root": {
			"name": "root",
			"kind": "root",
			"children": [
				{"name": "greeting", "kind": "note", "label": {"en": "Hello", "fr": "Bonjour"}}
			]
		}
	}`
	model, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	node, _ := model.Element("greeting")
	if !node.Label.IsLocalized() {
		t.Fatal("expected localized label")
	}
	if node.Label.Localized["fr"] != "Bonjour" {
		t.Errorf("unexpected fr label: %q", node.Label.Localized["fr"])
	}
}

func TestLoadJSON_UnknownKindRejected(t *testing.T) {
	doc := `{"root": {"name": "root", "kind": "bogus"}}`
	if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown node kind")
	}
}

func TestLoadJSON_StructuralValidationStillApplies(t *testing.T) {
	doc := `{
		"root": {
			"name": "root",
			"kind": "root",
			"children": [
				{
					"name": "outer",
					"kind": "repeat",
					"count": "2",
					"children": [
						{"name": "inner", "kind": "repeat", "count": "2"}
					]
				}
			]
		}
	}`
	if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
		t.Fatal("expected nested-repeat validation to reject this form")
	}
}
