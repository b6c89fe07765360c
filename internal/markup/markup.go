// Package markup parses response bodies into a simple named-node tree.
// Lookups are case-insensitive on node names, matching the loose markup
// the remote service emits.
package markup

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Node is one element of a parsed document. All methods are safe to call
// on a nil Node and return zero values, so lookup chains degrade to
// empty fields instead of panics when the document is malformed.
type Node struct {
	el *etree.Element
}

// Parse reads a document and returns its root node.
func Parse(body []byte) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("markup: parse: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("markup: document has no root element")
	}
	return &Node{el: root}, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n == nil || n.el == nil {
		return ""
	}
	return n.el.Tag
}

// Text returns the element's character data, trimmed.
func (n *Node) Text() string {
	if n == nil || n.el == nil {
		return ""
	}
	return strings.TrimSpace(n.el.Text())
}

// Children returns the element's child elements in document order.
func (n *Node) Children() []*Node {
	if n == nil || n.el == nil {
		return nil
	}
	elems := n.el.ChildElements()
	out := make([]*Node, 0, len(elems))
	for _, el := range elems {
		out = append(out, &Node{el: el})
	}
	return out
}

// Find returns the first direct child whose name matches, ignoring case,
// or nil if there is none.
func (n *Node) Find(name string) *Node {
	if n == nil || n.el == nil {
		return nil
	}
	for _, el := range n.el.ChildElements() {
		if strings.EqualFold(el.Tag, name) {
			return &Node{el: el}
		}
	}
	return nil
}

// FindPath resolves a slash-separated path of child names ("entities/urls"),
// each segment matched case-insensitively. Returns nil if any segment is
// missing.
func (n *Node) FindPath(path string) *Node {
	cur := n
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		cur = cur.Find(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}
