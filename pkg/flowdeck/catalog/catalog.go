// Package catalog describes the node types a flow can contain, how they are
// grouped in the add-node menu, and which types cannot share a flow.
//
// The catalog is a fixed table. Exclusivity is checked when a node is
// added; a loaded flow that breaks it is left as it is.
package catalog

import (
	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
)

// Group names used in the add-node menu.
const (
	GroupLLM       = "LLM"
	GroupKnowledge = "Knowledge Retrieval"
)

// Entry describes one node type.
type Entry struct {
	Type        flowdeck.NodeType   `json:"type"`
	Label       string              `json:"label"`
	Group       string              `json:"group,omitempty"`
	Description string              `json:"description"`
	Conflicts   []flowdeck.NodeType `json:"conflicts,omitempty"`
}

var entries = []Entry{
	{
		Type:        flowdeck.TypeStart,
		Label:       "Start",
		Description: "Entry point of the conversation.",
	},
	{
		Type:        flowdeck.TypeCustomPrompt,
		Label:       "LLM With Custom Prompt",
		Group:       GroupLLM,
		Description: "Answers with a language model steered by your own system prompt.",
		Conflicts: []flowdeck.NodeType{
			flowdeck.TypeKnowledgeLLM, flowdeck.TypeDocument, flowdeck.TypeURL, flowdeck.TypeTelephone,
		},
	},
	{
		Type:        flowdeck.TypeKnowledgeLLM,
		Label:       "LLM By Knowledge",
		Group:       GroupLLM,
		Description: "Answers from an uploaded document or a web page.",
		Conflicts:   []flowdeck.NodeType{flowdeck.TypeCustomPrompt, flowdeck.TypeTelephone},
	},
	{
		Type:        flowdeck.TypeDocument,
		Label:       "Knowledge Document",
		Group:       GroupKnowledge,
		Description: "A PDF, text or CSV file used as knowledge.",
		Conflicts: []flowdeck.NodeType{
			flowdeck.TypeDocument, flowdeck.TypeURL, flowdeck.TypeTelephone, flowdeck.TypeCustomPrompt,
		},
	},
	{
		Type:        flowdeck.TypeURL,
		Label:       "Knowledge URL",
		Group:       GroupKnowledge,
		Description: "A web page or repository used as knowledge.",
		Conflicts: []flowdeck.NodeType{
			flowdeck.TypeDocument, flowdeck.TypeURL, flowdeck.TypeTelephone, flowdeck.TypeCustomPrompt,
		},
	},
	{
		Type:        flowdeck.TypeTelephone,
		Label:       "Telephone",
		Description: "Hands the conversation to an AI voice call.",
		Conflicts: []flowdeck.NodeType{
			flowdeck.TypeCustomPrompt, flowdeck.TypeKnowledgeLLM, flowdeck.TypeDocument, flowdeck.TypeURL,
		},
	},
	{
		Type:        flowdeck.TypeEnd,
		Label:       "END",
		Description: "Exit point of the conversation.",
	},
}

var byType = func() map[flowdeck.NodeType]Entry {
	m := make(map[flowdeck.NodeType]Entry, len(entries))
	for _, e := range entries {
		m[e.Type] = e
	}
	return m
}()

// Lookup returns the entry for t.
func Lookup(t flowdeck.NodeType) (Entry, bool) {
	e, ok := byType[t]
	return e, ok
}

// Types returns every catalog type in menu order.
func Types() []flowdeck.NodeType {
	out := make([]flowdeck.NodeType, len(entries))
	for i, e := range entries {
		out[i] = e.Type
	}
	return out
}

// Conflicts reports whether a and b cannot share a flow. The relation is symmetric.
func Conflicts(a, b flowdeck.NodeType) bool {
	return listed(a, b) || listed(b, a)
}

func listed(a, b flowdeck.NodeType) bool {
	e, ok := byType[a]
	if !ok {
		return false
	}
	for _, c := range e.Conflicts {
		if c == b {
			return true
		}
	}
	return false
}

// IsTypeDisabled reports whether a node of type candidate may not be added
// to a flow holding nodes. Unknown types are never disabled.
func IsTypeDisabled(candidate flowdeck.NodeType, nodes []flowdeck.Node) bool {
	for _, n := range nodes {
		if Conflicts(candidate, n.Type) {
			return true
		}
	}
	return false
}

// DisabledTypes returns the catalog types that cannot be added to a flow
// holding nodes, in menu order.
func DisabledTypes(nodes []flowdeck.Node) []flowdeck.NodeType {
	var out []flowdeck.NodeType
	for _, e := range entries {
		if IsTypeDisabled(e.Type, nodes) {
			out = append(out, e.Type)
		}
	}
	return out
}
