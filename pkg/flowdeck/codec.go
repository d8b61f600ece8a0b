package flowdeck

import (
	"encoding/json"
	"fmt"
)

// canvasNodeType is the renderer type every node is drawn with.
const canvasNodeType = "custom"

type wireNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

type wireGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON encodes the node in the canvas shape.
func (n Node) MarshalJSON() ([]byte, error) {
	data := map[string]any{}
	if n.Config != nil {
		data = n.Config.fields()
	}
	data[keyLabel] = n.Label
	data[keyNodeType] = string(n.Type)
	return json.Marshal(wireNode{
		ID:       n.ID,
		Type:     canvasNodeType,
		Position: n.Position,
		Data:     data,
	})
}

// UnmarshalJSON decodes a canvas node. Missing configuration fields take
// their defaults. The node type comes from data.nodeType, falling back to
// the renderer type for flows saved before every node was "custom".
func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("decode node: missing id")
	}

	t, _ := w.Data[keyNodeType].(string)
	if t == "" && w.Type != canvasNodeType {
		t = w.Type
	}
	if t == "" {
		return fmt.Errorf("decode node %s: missing nodeType", w.ID)
	}

	label, _ := w.Data[keyLabel].(string)
	if label == "" {
		label = t
	}

	*n = Node{
		ID:       w.ID,
		Type:     NodeType(t),
		Label:    label,
		Position: w.Position,
		Config:   DecodeConfig(NodeType(t), configFields(w.Data)),
	}
	return nil
}

// MarshalJSON encodes the graph as {"nodes": [...], "edges": [...]}.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireGraph{Nodes: g.Nodes(), Edges: g.Edges()})
}

// UnmarshalJSON decodes a graph and checks that every edge endpoint exists.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var w wireGraph
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out, err := Assemble(w.Nodes, w.Edges)
	if err != nil {
		return err
	}
	*g = *out
	return nil
}

// Assemble builds a graph from client-supplied nodes and edges.
// An edge referencing a missing node fails with ErrNodeNotFound.
func Assemble(nodes []Node, edges []Edge) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		g.insert(n)
	}
	for _, e := range edges {
		for _, id := range []string{e.Source, e.Target} {
			if _, ok := g.index[id]; !ok {
				return nil, fmt.Errorf("edge %s: %w: %s", e.ID, ErrNodeNotFound, id)
			}
		}
		g.edges = append(g.edges, e)
	}
	return g, nil
}

// EncodeParts encodes nodes and edges separately, as the flow tables store them.
func EncodeParts(g *Graph) (nodes, edges string, err error) {
	nb, err := json.Marshal(g.Nodes())
	if err != nil {
		return "", "", fmt.Errorf("encode nodes: %w", err)
	}
	eb, err := json.Marshal(g.Edges())
	if err != nil {
		return "", "", fmt.Errorf("encode edges: %w", err)
	}
	return string(nb), string(eb), nil
}

// DecodeParts is the inverse of EncodeParts. Empty strings decode as empty lists.
// Stored data is read leniently: edges whose endpoints are missing are left
// out of the graph and returned as dropped.
func DecodeParts(nodes, edges string) (g *Graph, dropped []Edge, err error) {
	var ns []Node
	var es []Edge
	if nodes != "" {
		if err := json.Unmarshal([]byte(nodes), &ns); err != nil {
			return nil, nil, fmt.Errorf("decode nodes: %w", err)
		}
	}
	if edges != "" {
		if err := json.Unmarshal([]byte(edges), &es); err != nil {
			return nil, nil, fmt.Errorf("decode edges: %w", err)
		}
	}

	g = NewGraph()
	for _, n := range ns {
		g.insert(n)
	}
	for _, e := range es {
		_, okSource := g.index[e.Source]
		_, okTarget := g.index[e.Target]
		if !okSource || !okTarget {
			dropped = append(dropped, e)
			continue
		}
		g.edges = append(g.edges, e)
	}
	return g, dropped, nil
}
