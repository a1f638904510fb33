package roster

import (
	"context"
	"strings"
	"testing"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/storage"
)

type fakeTarget struct {
	respondents []storage.RosterRow
	enumerators []storage.RosterRow
}

func (f *fakeTarget) UpsertRespondent(ctx context.Context, row storage.RosterRow) error {
	f.respondents = append(f.respondents, row)
	return nil
}

func (f *fakeTarget) UpsertEnumerator(ctx context.Context, row storage.RosterRow) error {
	f.enumerators = append(f.enumerators, row)
	return nil
}

func TestLoadRespondents_SynthesizesUUIDWhenAbsent(t *testing.T) {
	csv := "name,team\nAda,blue\nGrace,red\n"
	target := &fakeTarget{}
	n, err := LoadRespondents(context.Background(), target, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadRespondents: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows loaded, got %d", n)
	}
	if target.respondents[0].UUID == "" {
		t.Fatal("expected a synthesized uuid")
	}
	if target.respondents[0].Attributes["name"] != "Ada" || target.respondents[0].Attributes["team"] != "blue" {
		t.Fatalf("unexpected attributes: %v", target.respondents[0].Attributes)
	}
	if _, present := target.respondents[0].Attributes["uuid"]; present {
		t.Fatal("uuid should not also appear as a roster attribute")
	}
}

func TestLoadRespondents_UsesProvidedUUID(t *testing.T) {
	csv := "uuid,name\nfixed-uuid,Ada\n"
	target := &fakeTarget{}
	if _, err := LoadRespondents(context.Background(), target, strings.NewReader(csv)); err != nil {
		t.Fatalf("LoadRespondents: %v", err)
	}
	if target.respondents[0].UUID != "fixed-uuid" {
		t.Fatalf("expected fixed-uuid, got %q", target.respondents[0].UUID)
	}
}

func TestLoadEnumerators_EmptyFile(t *testing.T) {
	target := &fakeTarget{}
	n, err := LoadEnumerators(context.Background(), target, strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadEnumerators: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows, got %d", n)
	}
}
