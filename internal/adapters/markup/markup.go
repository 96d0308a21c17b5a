// Package markup decodes the XML frames sent by the heat pump's web socket
// interface into domain messages.
package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/Cetendo/EnergyLogger/internal/domain"
)

// ErrMalformed is returned for frames that are not well-formed XML.
var ErrMalformed = errors.New("markup: malformed frame")

const (
	rootNavigation = "Navigation"
	rootContent    = "Content"
)

type xmlItem struct {
	ID     string    `xml:"id,attr"`
	Names  []string  `xml:"name"`
	Values []string  `xml:"value"`
	Items  []xmlItem `xml:"item"`
}

type xmlRoot struct {
	XMLName xml.Name
	xmlItem
}

// Decode parses one frame. Frames with an unknown root element decode to an
// empty message.
func Decode(raw []byte) (*domain.Message, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	var root xmlRoot
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := &domain.Message{}
	switch root.XMLName.Local {
	case rootNavigation:
		msg.Navigation = navEntries(root.Items, 0)
	case rootContent:
		if len(root.Items) > 0 {
			msg.Content = nodes(root.Items, 0)
		} else if n, ok := meaningful(toNode(root.xmlItem, 0)); ok {
			// A content root without items is itself the only node.
			msg.Content = []domain.Node{n}
		}
	}
	return msg, nil
}

func nodes(items []xmlItem, depth int) []domain.Node {
	out := make([]domain.Node, 0, len(items))
	for _, it := range items {
		out = append(out, toNode(it, depth))
	}
	return out
}

func toNode(it xmlItem, depth int) domain.Node {
	name := itemName(it)
	switch {
	case len(it.Items) > 0 && depth < maxDepth:
		return domain.Section{Name: name, Children: nodes(it.Items, depth+1)}
	case len(it.Items) > 0:
		return domain.Section{Name: name}
	case len(it.Values) > 0:
		return domain.Leaf{Name: name, Values: it.Values}
	default:
		return domain.Label{Name: name}
	}
}

func meaningful(n domain.Node) (domain.Node, bool) {
	switch v := n.(type) {
	case domain.Label:
		return n, v.Name != ""
	default:
		return n, true
	}
}

func navEntries(items []xmlItem, depth int) []domain.NavEntry {
	if depth >= maxDepth {
		return nil
	}
	out := make([]domain.NavEntry, 0, len(items))
	for _, it := range items {
		out = append(out, domain.NavEntry{
			ID:       strings.TrimSpace(it.ID),
			Name:     itemName(it),
			Children: navEntries(it.Items, depth+1),
		})
	}
	return out
}

// maxDepth guards against hostile nesting; real frames nest a few levels.
const maxDepth = 64

func itemName(it xmlItem) string {
	if len(it.Names) == 0 {
		return ""
	}
	return NormalizeName(it.Names[0])
}

// NormalizeName trims a name and converts it to NFC so that "Wärmemenge"
// compares equal however the umlaut was encoded.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
