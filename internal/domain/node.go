package domain

// Node is one element of the tree the heat pump sends. It is one of Leaf,
// Section or Label; the markup decoder picks the variant once so the rest of
// the pipeline never has to guess.
type Node interface {
	NodeName() string
	isNode()
}

// Leaf is a named field carrying one or more values. Only the first value is
// ever read.
type Leaf struct {
	Name   string
	Values []string
}

// Section groups child nodes. Top-level sections are categories.
type Section struct {
	Name     string
	Children []Node
}

// Label carries a name and nothing else.
type Label struct {
	Name string
}

func (l Leaf) NodeName() string    { return l.Name }
func (s Section) NodeName() string { return s.Name }
func (l Label) NodeName() string   { return l.Name }

func (Leaf) isNode()    {}
func (Section) isNode() {}
func (Label) isNode()   {}

// FirstValue returns the first value of the leaf, if any.
func (l Leaf) FirstValue() (string, bool) {
	if len(l.Values) == 0 {
		return "", false
	}
	return l.Values[0], true
}

// NavEntry is an entry of the navigation tree. ID is opaque and only ever
// echoed back to the device.
type NavEntry struct {
	ID       string
	Name     string
	Children []NavEntry
}

// Message is one decoded frame. Either part may be empty.
type Message struct {
	Navigation []NavEntry
	Content    []Node
}

// HasNavigation reports whether the frame carried a navigation tree.
func (m *Message) HasNavigation() bool { return m != nil && len(m.Navigation) > 0 }

// HasContent reports whether the frame carried data content.
func (m *Message) HasContent() bool { return m != nil && len(m.Content) > 0 }
