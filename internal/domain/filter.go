package domain

// FilterRule selects the children of one section. Include wins over Exclude;
// a rule with neither keeps everything. Nested holds rules for named
// subsections.
type FilterRule struct {
	Include []string               `yaml:"include,omitempty"`
	Exclude []string               `yaml:"exclude,omitempty"`
	Nested  map[string]*FilterRule `yaml:"nested,omitempty"`
}

// IsPassThrough reports whether the rule keeps every child of its own section.
func (r *FilterRule) IsPassThrough() bool {
	return r == nil || (r.Include == nil && r.Exclude == nil)
}

// NestedRule returns the rule configured for the named subsection.
func (r *FilterRule) NestedRule(name string) (*FilterRule, bool) {
	if r == nil || r.Nested == nil {
		return nil, false
	}
	rule, ok := r.Nested[name]
	return rule, ok
}

// ImportValues maps the top-level categories to import onto their rules. A
// category present with a nil rule is imported unfiltered.
type ImportValues map[string]*FilterRule

func (iv ImportValues) Has(category string) bool {
	_, ok := iv[category]
	return ok
}
