package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Cetendo/EnergyLogger/internal/domain"
)

func TestFlattenSectionLastWriteWins(t *testing.T) {
	got := FlattenSection([]domain.Node{
		leaf("x", "1"),
		leaf("x", "2"),
	})
	if v, _ := got.Get("x"); v != "2" {
		t.Fatalf("expected last write to win, got %q", v)
	}
	if got.Len() != 1 {
		t.Fatalf("expected one field, got %d", got.Len())
	}
}

func TestFlattenSectionDepthFirstLeftToRight(t *testing.T) {
	got := FlattenSection([]domain.Node{
		leaf("a", "1"),
		section("inner",
			leaf("b", "2"),
			section("deeper", leaf("a", "3")),
		),
		domain.Section{Children: []domain.Node{leaf("c", "4")}},
		leaf("b", "5"),
		domain.Label{Name: "just a label"},
		domain.Leaf{Name: "novalue"},
		domain.Leaf{Values: []string{"noname"}},
		domain.Leaf{Name: "multi", Values: []string{"first", "second"}},
	})

	wantKeys := []string{"a", "b", "c", "multi"}
	if diff := cmp.Diff(wantKeys, got.Keys()); diff != "" {
		t.Fatalf("unexpected key order (-want +got):\n%s", diff)
	}
	wantValues := map[string]string{"a": "3", "b": "5", "c": "4", "multi": "first"}
	if diff := cmp.Diff(wantValues, got.Map()); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestFlattenCategories(t *testing.T) {
	nodes := []domain.Node{
		section("Temperaturen",
			leaf("Vorlauf", "45.3"),
			leaf("Rücklauf", "38,0"),
		),
		section("Energiemonitor",
			section("Wärmemenge", leaf("Heizung", "1234.5 kWh"), leaf("Gesamt", "2000 kWh")),
			section("Leistungsaufnahme", leaf("Heizung", "300 kWh")),
			leaf("stray", "ignored"),
			section("Leer"),
		),
		section("Leer"),
		domain.Label{Name: "Anlagenstatus"},
		section("", leaf("orphan", "1")),
	}

	snap := FlattenCategories(nodes)

	if len(snap) != 2 {
		t.Fatalf("expected 2 categories, got %d: %v", len(snap), snap)
	}
	temps := snap["Temperaturen"].Fields
	if diff := cmp.Diff(map[string]string{"Vorlauf": "45.3", "Rücklauf": "38,0"}, temps.Map()); diff != "" {
		t.Fatalf("temperaturen mismatch:\n%s", diff)
	}

	em := snap["Energiemonitor"]
	if em.Fields != nil {
		t.Fatalf("expected multi-subcategory category to carry no flat fields")
	}
	if len(em.Subcategories) != 2 {
		t.Fatalf("expected 2 subcategories, got %d", len(em.Subcategories))
	}
	if v, _ := em.Subcategories["Wärmemenge"].Get("Gesamt"); v != "2000 kWh" {
		t.Fatalf("unexpected Wärmemenge/Gesamt %q", v)
	}
	if v, _ := em.Subcategories["Leistungsaufnahme"].Get("Heizung"); v != "300 kWh" {
		t.Fatalf("unexpected Leistungsaufnahme/Heizung %q", v)
	}
}

func TestFlattenFailsClosedOnPathologicalDepth(t *testing.T) {
	var n domain.Node = leaf("deep", "1")
	for i := 0; i < MaxDepth*2; i++ {
		n = section("s", n)
	}

	var f Flattener
	got := f.FlattenSection([]domain.Node{leaf("top", "0"), n})
	if !f.Truncated {
		t.Fatalf("expected truncation to be reported")
	}
	if _, ok := got.Get("deep"); ok {
		t.Fatalf("expected leaf beyond MaxDepth to be dropped")
	}
	if v, _ := got.Get("top"); v != "0" {
		t.Fatalf("expected shallow fields to survive, got %q", v)
	}
}
