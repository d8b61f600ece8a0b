package flowdeck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_MarshalCanvasShape(t *testing.T) {
	n := Node{
		ID:       "n1",
		Type:     TypeURL,
		Label:    "Docs site",
		Position: Position{X: 1, Y: 2},
		Config:   URLConfig{URL: "https://example.com"},
	}

	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "n1",
		"type": "custom",
		"position": {"x": 1, "y": 2},
		"data": {"label": "Docs site", "nodeType": "Knowledge URL", "url": "https://example.com"}
	}`, string(b))
}

func TestNode_UnmarshalDefaults(t *testing.T) {
	var n Node
	err := json.Unmarshal([]byte(`{"id":"n1","type":"custom","position":{"x":0,"y":0},
		"data":{"nodeType":"LLM With Custom Prompt","prompt":"hi"}}`), &n)
	require.NoError(t, err)

	assert.Equal(t, TypeCustomPrompt, n.Type)
	assert.Equal(t, "LLM With Custom Prompt", n.Label)
	cfg := n.Config.(PromptConfig)
	assert.Equal(t, "hi", cfg.Prompt)
	assert.Equal(t, 2048, cfg.MaxTokens)
}

func TestNode_UnmarshalErrors(t *testing.T) {
	tests := map[string]string{
		"missing id":       `{"type":"custom","data":{"nodeType":"Start"}}`,
		"missing nodeType": `{"id":"x","type":"custom","data":{}}`,
		"bad json":         `{"id":`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			var n Node
			assert.Error(t, json.Unmarshal([]byte(in), &n))
		})
	}
}

// TestGraph_RoundTrip verifies ids, types and configs survive encoding.
func TestGraph_RoundTrip(t *testing.T) {
	g := NewGraph()
	start := g.AddNode(TypeStart, Position{X: 199.09151622227262, Y: 80.00000000000006})
	prompt := g.AddNode(TypeCustomPrompt, Position{X: 480})
	phone := g.AddNode(TypeTelephone, Position{X: 760})
	legacy := g.AddNode(NodeType("Old Thing"), Position{})
	_, err := g.UpdateNode(prompt.ID, map[string]any{"prompt": "p", "maxTokens": 99})
	require.NoError(t, err)
	_, err = g.UpdateNode(legacy.ID, map[string]any{"nested": map[string]any{"a": "b"}})
	require.NoError(t, err)
	_, err = g.Connect(start.ID, prompt.ID)
	require.NoError(t, err)
	_, err = g.Connect(prompt.ID, phone.ID)
	require.NoError(t, err)

	nodes, edges, err := EncodeParts(g)
	require.NoError(t, err)
	got, dropped, err := DecodeParts(nodes, edges)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	assert.Equal(t, g.Edges(), got.Edges())
	require.Equal(t, g.Len(), got.Len())
	for i, want := range g.Nodes() {
		n := got.Nodes()[i]
		assert.Equal(t, want.ID, n.ID)
		assert.Equal(t, want.Type, n.Type)
		assert.Equal(t, want.Label, n.Label)
		assert.Equal(t, want.Position, n.Position)
		assert.Equal(t, want.Config, n.Config)
	}

	b, err := json.Marshal(g)
	require.NoError(t, err)
	var whole Graph
	require.NoError(t, json.Unmarshal(b, &whole))
	assert.Equal(t, g.Edges(), whole.Edges())
}

func TestDecodeParts(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		g, _, err := DecodeParts("", "")
		require.NoError(t, err)
		assert.Equal(t, 0, g.Len())
		assert.Empty(t, g.Edges())
	})

	t.Run("dangling edge dropped", func(t *testing.T) {
		g, dropped, err := DecodeParts(
			`[{"id":"a","type":"custom","data":{"nodeType":"Start"}},{"id":"c","type":"custom","data":{"nodeType":"END"}}]`,
			`[{"id":"e1-2","source":"1","target":"2"},{"id":"e","source":"a","target":"b"},{"id":"ok","source":"a","target":"c"}]`,
		)
		require.NoError(t, err)
		assert.Equal(t, 2, g.Len())
		require.Len(t, g.Edges(), 1)
		assert.Equal(t, "ok", g.Edges()[0].ID)
		require.Len(t, dropped, 2)
		assert.Equal(t, "e1-2", dropped[0].ID)
		assert.Equal(t, "e", dropped[1].ID)
	})

	t.Run("bad json", func(t *testing.T) {
		_, _, err := DecodeParts(`{`, ``)
		assert.Error(t, err)
	})

	t.Run("legacy renderer type", func(t *testing.T) {
		g, _, err := DecodeParts(`[{"id":"a","type":"END","data":{}}]`, `[]`)
		require.NoError(t, err)
		n, _ := g.Node("a")
		assert.Equal(t, TypeEnd, n.Type)
	})
}

func TestAssemble_RejectsDanglingEdge(t *testing.T) {
	start := Node{ID: "a", Type: TypeStart, Label: "Start", Config: DefaultConfig(TypeStart)}
	_, err := Assemble([]Node{start}, []Edge{{ID: "e", Source: "a", Target: "b"}})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
