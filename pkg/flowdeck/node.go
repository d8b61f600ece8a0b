package flowdeck

// NodeType tags a node with one of the catalog types.
// The string values are the tags stored in saved flows.
type NodeType string

// Node types known to the catalog.
const (
	TypeStart        NodeType = "Start"
	TypeCustomPrompt NodeType = "LLM With Custom Prompt"
	TypeKnowledgeLLM NodeType = "LLM By Knowledge"
	TypeDocument     NodeType = "Knowledge Document"
	TypeURL          NodeType = "Knowledge URL"
	TypeTelephone    NodeType = "telephone"
	TypeEnd          NodeType = "END"
)

// IsLLM reports whether t is one of the LLM types.
func (t NodeType) IsLLM() bool {
	return t == TypeCustomPrompt || t == TypeKnowledgeLLM
}

// IsKnowledge reports whether t is one of the knowledge-retrieval types.
func (t NodeType) IsKnowledge() bool {
	return t == TypeDocument || t == TypeURL
}

// Known reports whether t is one of the catalog types.
func (t NodeType) Known() bool {
	switch t {
	case TypeStart, TypeCustomPrompt, TypeKnowledgeLLM, TypeDocument, TypeURL, TypeTelephone, TypeEnd:
		return true
	}
	return false
}

// Position is a canvas coordinate. It only affects layout.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of a flow.
//
// Type is fixed at creation. Config always holds the variant matching Type,
// or a RawConfig for types the catalog does not know.
type Node struct {
	ID       string
	Type     NodeType
	Label    string
	Position Position
	Config   NodeConfig
}

// Edge connects two nodes of the same graph.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// Mentions reports whether the edge has nodeID as either endpoint.
func (e Edge) Mentions(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
