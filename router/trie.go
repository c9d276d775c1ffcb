package router

import "strings"

// TrieNode is one segment position in a RouteTrie. Static children are
// keyed by their literal text for O(1) lookup; dynamic children are kept
// in an ordered slice because more than one can exist at the same
// position (e.g. "{name}" and "{id}" both following "interfaces"), and
// ties between them are broken by declaration order, not by name.
type TrieNode struct {
	Literal         string
	Kind            SegmentKind
	Placeholder     string
	StaticChildren  map[string]*TrieNode
	DynamicChildren []*TrieNode
	Route           *Route
}

func newTrieNode(seg Segment) *TrieNode {
	return &TrieNode{
		Literal:        seg.Literal,
		Kind:           seg.Kind,
		Placeholder:    seg.Placeholder,
		StaticChildren: make(map[string]*TrieNode),
	}
}

// RouteTrie matches concrete MQTT topics against a set of registered
// TemplatePaths, preferring a static match over a dynamic one at every
// position and, among dynamic siblings, the one registered first.
type RouteTrie struct {
	root *TrieNode
}

// NewRouteTrie returns an empty trie.
func NewRouteTrie() *RouteTrie {
	return &RouteTrie{root: &TrieNode{StaticChildren: make(map[string]*TrieNode)}}
}

// Insert registers route under tp, creating any trie nodes that do not
// already exist. Inserting the same template twice overwrites the
// previously registered route at that position (last write wins) rather
// than erroring, since re-ingesting an OpenAPI document on reconnect is
// expected to repeat the same inserts. It returns the nodes that were
// newly created by this call (empty when every node already existed).
// The Dispatcher does not use this result; it plans subscriptions from
// the template topics with PlanSubscriptions.
func (t *RouteTrie) Insert(tp TemplatePath, route Route) []*TrieNode {
	var created []*TrieNode
	node := t.root

	for _, seg := range tp.Segments {
		if seg.Kind == SegmentStatic {
			child, ok := node.StaticChildren[seg.Literal]
			if !ok {
				child = newTrieNode(seg)
				node.StaticChildren[seg.Literal] = child
				created = append(created, child)
			}
			node = child
			continue
		}

		var child *TrieNode
		for _, c := range node.DynamicChildren {
			if c.Literal == seg.Literal {
				child = c
				break
			}
		}
		if child == nil {
			child = newTrieNode(seg)
			node.DynamicChildren = append(node.DynamicChildren, child)
			created = append(created, child)
		}
		node = child
	}

	r := route
	node.Route = &r
	return created
}

// Lookup matches a concrete, already-split topic against the trie. It
// returns the matched Route (still template-shaped — the caller applies
// Rebind) and the ordered bindings collected along the matching path, or
// (nil, nil) if nothing matches. At each level, static children are
// tried before dynamic ones, and dynamic children are tried in the order
// they were inserted; the first full match to a leaf with a registered
// Route wins.
func (t *RouteTrie) Lookup(topic string) (*Route, []Binding) {
	return lookup(t.root, strings.Split(strings.TrimPrefix(topic, "/"), "/"))
}

func lookup(n *TrieNode, segments []string) (*Route, []Binding) {
	if len(segments) == 0 {
		if n.Route != nil {
			return n.Route, nil
		}
		return nil, nil
	}

	head, rest := segments[0], segments[1:]

	if child, ok := n.StaticChildren[head]; ok {
		if route, bindings := lookup(child, rest); route != nil {
			return route, bindings
		}
	}

	if head != "" {
		for _, child := range n.DynamicChildren {
			if route, bindings := lookup(child, rest); route != nil {
				bindings = append([]Binding{{Name: child.Placeholder, Value: head}}, bindings...)
				return route, bindings
			}
		}
	}

	return nil, nil
}
