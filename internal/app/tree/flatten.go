package tree

import "github.com/Cetendo/EnergyLogger/internal/domain"

// MaxDepth bounds every walk over a node tree. The device nests two or three
// levels deep; anything past MaxDepth is dropped.
const MaxDepth = 32

// Flattener turns pruned content trees into snapshots. The zero value is
// ready to use.
type Flattener struct {
	// Truncated is set when a walk hit MaxDepth.
	Truncated bool
}

// FlattenSection collects every named leaf below nodes into one field map.
// The walk is depth-first, left to right; a later field with the same name
// overwrites an earlier one.
func (f *Flattener) FlattenSection(nodes []domain.Node) *domain.FieldMap {
	out := domain.NewFieldMap()
	f.flattenInto(out, nodes, 0)
	return out
}

func (f *Flattener) flattenInto(out *domain.FieldMap, nodes []domain.Node, depth int) {
	if depth > MaxDepth {
		f.Truncated = true
		return
	}
	for _, n := range nodes {
		switch v := n.(type) {
		case domain.Leaf:
			if v.Name == "" {
				continue
			}
			if val, ok := v.FirstValue(); ok {
				out.Set(v.Name, val)
			}
		case domain.Section:
			// Unnamed sections are wrappers; their leaves join this map.
			f.flattenInto(out, v.Children, depth+1)
		}
	}
}

// FlattenCategories builds a snapshot from top-level category sections. The
// multi-subcategory category keeps one field map per named child section.
func (f *Flattener) FlattenCategories(nodes []domain.Node) domain.Snapshot {
	snap := make(domain.Snapshot)
	for _, n := range nodes {
		sec, ok := n.(domain.Section)
		if !ok || sec.Name == "" || len(sec.Children) == 0 {
			continue
		}

		if sec.Name == domain.MultiSubcategoryCategory {
			snap[sec.Name] = domain.CategoryReading{Subcategories: f.flattenSubcategories(sec.Children)}
			continue
		}
		snap[sec.Name] = domain.CategoryReading{Fields: f.FlattenSection(sec.Children)}
	}
	return snap
}

func (f *Flattener) flattenSubcategories(nodes []domain.Node) map[string]*domain.FieldMap {
	subs := make(map[string]*domain.FieldMap)
	for _, n := range nodes {
		sec, ok := n.(domain.Section)
		if !ok || sec.Name == "" || len(sec.Children) == 0 {
			continue
		}
		subs[sec.Name] = f.FlattenSection(sec.Children)
	}
	return subs
}

// FlattenSection is a convenience wrapper around a throwaway Flattener.
func FlattenSection(nodes []domain.Node) *domain.FieldMap {
	var f Flattener
	return f.FlattenSection(nodes)
}

// FlattenCategories is a convenience wrapper around a throwaway Flattener.
func FlattenCategories(nodes []domain.Node) domain.Snapshot {
	var f Flattener
	return f.FlattenCategories(nodes)
}
