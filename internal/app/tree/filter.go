// Package tree prunes and flattens the node trees decoded from heat pump
// content messages.
package tree

import "github.com/Cetendo/EnergyLogger/internal/domain"

// FilterTopLevel keeps the nodes whose name is a configured category, in
// their original order. It does not descend.
func FilterTopLevel(nodes []domain.Node, known domain.ImportValues) []domain.Node {
	out := make([]domain.Node, 0, len(nodes))
	for _, n := range nodes {
		if name := n.NodeName(); name != "" && known.Has(name) {
			out = append(out, n)
		}
	}
	return out
}

// FilterChildren applies one rule to one level of nodes. Unnamed nodes never
// match a name list and are dropped whenever Include or Exclude is set.
func FilterChildren(nodes []domain.Node, rule *domain.FilterRule) []domain.Node {
	if rule.IsPassThrough() {
		return nodes
	}

	if rule.Include != nil {
		keep := toSet(rule.Include)
		return selectNodes(nodes, func(name string) bool { return keep[name] })
	}

	drop := toSet(rule.Exclude)
	return selectNodes(nodes, func(name string) bool { return !drop[name] })
}

// Prune filters a category's children with rule and walks into subsections.
// A named subsection with its own entry in rule.Nested is pruned with that
// rule; any other subsection is kept whole, but its own subsections are still
// looked up in rule.Nested.
func Prune(nodes []domain.Node, rule *domain.FilterRule) []domain.Node {
	return prune(nodes, rule, rule, 0)
}

func prune(nodes []domain.Node, own, lookup *domain.FilterRule, depth int) []domain.Node {
	if depth > MaxDepth {
		return nil
	}

	kept := FilterChildren(nodes, own)
	out := make([]domain.Node, 0, len(kept))
	for _, n := range kept {
		sec, ok := n.(domain.Section)
		if !ok {
			out = append(out, n)
			continue
		}

		if nested, ok := lookup.NestedRule(sec.Name); ok && sec.Name != "" {
			sec.Children = prune(sec.Children, nested, nested, depth+1)
		} else {
			sec.Children = prune(sec.Children, nil, lookup, depth+1)
		}
		out = append(out, sec)
	}
	return out
}

func selectNodes(nodes []domain.Node, keep func(name string) bool) []domain.Node {
	out := make([]domain.Node, 0, len(nodes))
	for _, n := range nodes {
		name := n.NodeName()
		if name == "" {
			continue
		}
		if keep(name) {
			out = append(out, n)
		}
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
