package manifest

import "strings"

// Kind tags the variant held by a Node.
type Kind int

const (
	KindOther Kind = iota
	KindTable
	KindArray
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	default:
		return "other"
	}
}

// Node is one value of a decoded manifest. Exactly one of the variant
// fields is meaningful, selected by Kind.
type Node struct {
	Kind Kind

	fields map[string]*Node
	items  []*Node
	str    string
}

// Field returns the direct child named key of a table node.
func (n *Node) Field(key string) (*Node, bool) {
	if n == nil || n.Kind != KindTable {
		return nil, false
	}
	child, ok := n.fields[key]
	return child, ok
}

// Items returns the elements of an array node, or nil.
func (n *Node) Items() []*Node {
	if n == nil || n.Kind != KindArray {
		return nil
	}
	return n.items
}

// Str returns the value of a string node.
func (n *Node) Str() (string, bool) {
	if n == nil || n.Kind != KindString {
		return "", false
	}
	return n.str, true
}

// Lookup descends through table keys split on ".". It reports false the
// first time a segment is absent or the current node is not a table.
func (n *Node) Lookup(path string) (*Node, bool) {
	cur := n
	for _, seg := range strings.Split(path, ".") {
		next, ok := cur.Field(seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// LookupString is Lookup restricted to string nodes.
func (n *Node) LookupString(path string) (string, bool) {
	v, ok := n.Lookup(path)
	if !ok {
		return "", false
	}
	return v.Str()
}

// LookupArray is Lookup restricted to array nodes.
func (n *Node) LookupArray(path string) ([]*Node, bool) {
	v, ok := n.Lookup(path)
	if !ok || v.Kind != KindArray {
		return nil, false
	}
	return v.items, true
}

// ItemsAt returns the array at path. A missing path or a value of another
// kind yields an empty slice, never an error.
func (n *Node) ItemsAt(path string) []*Node {
	items, ok := n.LookupArray(path)
	if !ok {
		return []*Node{}
	}
	return items
}

// Strings returns the string elements of the array at path. Non-string
// elements are skipped.
func (n *Node) Strings(path string) []string {
	items := n.ItemsAt(path)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.Str(); ok {
			out = append(out, s)
		}
	}
	return out
}
