package flowdeck

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
)

// Patch keys with a meaning outside the node configuration.
const (
	keyLabel    = "label"
	keyNodeType = "nodeType"
)

// Graph is an insertion-ordered set of nodes plus the edges between them.
//
// Graph is NOT safe for concurrent use. The editor serializes access.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode appends a node of type t at pos with a fresh id, the type tag as
// label, and the default configuration for t.
func (g *Graph) AddNode(t NodeType, pos Position) Node {
	n := Node{
		ID:       uuid.NewString(),
		Type:     t,
		Label:    string(t),
		Position: pos,
		Config:   DefaultConfig(t),
	}
	g.insert(n)
	return n
}

// insert appends n as-is. Used by the codec and Clone.
func (g *Graph) insert(n Node) {
	if g.index == nil {
		g.index = make(map[string]int)
	}
	if i, ok := g.index[n.ID]; ok {
		g.nodes[i] = n
		return
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// RemoveNode deletes the node and every edge that mentions it.
func (g *Graph) RemoveNode(id string) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	delete(g.index, id)
	for j := i; j < len(g.nodes); j++ {
		g.index[g.nodes[j].ID] = j
	}

	kept := g.edges[:0]
	for _, e := range g.edges {
		if !e.Mentions(id) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return nil
}

// UpdateNode merges patch into the node's label and configuration.
//
// Keys the node's configuration does not know are ignored, except for
// RawConfig nodes which keep everything. A "nodeType" key naming a different
// type fails with ErrTypeImmutable and leaves the node unchanged.
func (g *Graph) UpdateNode(id string, patch map[string]any) (Node, error) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n := g.nodes[i]

	p := config.New(patch)
	if p.Has(keyNodeType) && p.String(keyNodeType, "") != string(n.Type) {
		return Node{}, fmt.Errorf("%w: node %s is %q", ErrTypeImmutable, id, n.Type)
	}

	n.Label = p.String(keyLabel, n.Label)
	n.Config = n.Config.merge(config.New(configFields(patch)))
	g.nodes[i] = n
	return n, nil
}

// Move changes a node's canvas position.
func (g *Graph) Move(id string, pos Position) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	g.nodes[i].Position = pos
	return nil
}

// Connect adds an edge from source to target. Both must exist.
// Self-loops and parallel edges are allowed.
func (g *Graph) Connect(source, target string) (Edge, error) {
	for _, id := range []string{source, target} {
		if _, ok := g.index[id]; !ok {
			return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}
	e := Edge{ID: uuid.NewString(), Source: source, Target: target}
	g.edges = append(g.edges, e)
	return e, nil
}

// Disconnect removes the edge with the given id. Unknown ids are a no-op.
func (g *Graph) Disconnect(edgeID string) {
	for i, e := range g.edges {
		if e.ID == edgeID {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return
		}
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Last returns the most recently added node.
func (g *Graph) Last() (Node, bool) {
	if len(g.nodes) == 0 {
		return Node{}, false
	}
	return g.nodes[len(g.nodes)-1], true
}

// NodesOfType returns the nodes of type t in insertion order.
func (g *Graph) NodesOfType(t NodeType) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// HasType reports whether any node has type t.
func (g *Graph) HasType(t NodeType) bool {
	for _, n := range g.nodes {
		if n.Type == t {
			return true
		}
	}
	return false
}

// Reaches reports whether a directed path of edges leads from source to target.
func (g *Graph) Reaches(source, target string) bool {
	adj := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	seen := map[string]bool{source: true}
	queue := []string{source}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Connected reports whether the node is an endpoint of at least one edge.
func (g *Graph) Connected(id string) bool {
	for _, e := range g.edges {
		if e.Mentions(id) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for _, n := range g.nodes {
		if raw, ok := n.Config.(RawConfig); ok {
			n.Config = RawConfig{Type: raw.Type, Data: raw.fields()}
		}
		out.insert(n)
	}
	out.edges = g.Edges()
	return out
}

// configFields strips the keys that describe the node rather than its configuration.
func configFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k == keyLabel || k == keyNodeType {
			continue
		}
		out[k] = v
	}
	return out
}
