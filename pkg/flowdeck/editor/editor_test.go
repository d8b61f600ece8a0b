package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEditor(opts ...Option) *Editor {
	return New(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestNew(t *testing.T) {
	e := New()
	s := e.State()
	assert.Equal(t, "Untitled Flow", s.FlowName)
	assert.Equal(t, 1.0, s.Zoom)
	assert.False(t, s.Dirty)
	assert.Equal(t, 0, e.Graph().Len())
}

func TestAddNode_Placement(t *testing.T) {
	e := newTestEditor(WithZoom(2))

	first, err := e.AddNode(flowdeck.TypeStart)
	require.NoError(t, err)
	assert.Equal(t, FirstPosition, first.Position)

	second, err := e.AddNode(flowdeck.TypeCustomPrompt)
	require.NoError(t, err)
	assert.InDelta(t, FirstPosition.X+140, second.Position.X, 1e-9)
	assert.Equal(t, FirstPosition.Y, second.Position.Y)

	require.NoError(t, e.Move(second.ID, flowdeck.Position{X: 1000, Y: 500}))
	e.SetZoom(1)
	third, err := e.AddNode(flowdeck.TypeEnd)
	require.NoError(t, err)
	assert.Equal(t, flowdeck.Position{X: 1280, Y: 500}, third.Position)

	s := e.State()
	assert.True(t, s.Dirty)
	assert.Equal(t, fixedNow, s.LastEdit)
}

func TestAddNode_Disabled(t *testing.T) {
	e := newTestEditor()
	_, err := e.AddNode(flowdeck.TypeTelephone)
	require.NoError(t, err)

	_, err = e.AddNode(flowdeck.TypeCustomPrompt)
	assert.ErrorIs(t, err, ErrTypeDisabled)
	assert.Equal(t, 1, e.Graph().Len())

	assert.Equal(t, []flowdeck.NodeType{
		flowdeck.TypeCustomPrompt, flowdeck.TypeKnowledgeLLM, flowdeck.TypeDocument, flowdeck.TypeURL,
	}, e.DisabledTypes())
	assert.True(t, e.Menu()[1].Disabled)
}

func TestSelection(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(flowdeck.TypeStart)
	b, _ := e.AddNode(flowdeck.TypeEnd)
	_, err := e.Connect(a.ID, b.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Select("ghost"), flowdeck.ErrNodeNotFound)
	_, ok := e.Selected()
	assert.False(t, ok)

	require.NoError(t, e.Select(b.ID))
	sel, ok := e.Selected()
	require.True(t, ok)
	assert.Equal(t, b.ID, sel.ID)

	assert.True(t, e.DeleteSelected())
	assert.Empty(t, e.State().Selected)
	assert.Empty(t, e.Graph().Edges())
	assert.False(t, e.DeleteSelected(), "nothing selected")

	require.NoError(t, e.Select(a.ID))
	e.Deselect()
	_, ok = e.Selected()
	assert.False(t, ok)
}

func TestRemoveNode_ClearsSelectionOnlyForThatNode(t *testing.T) {
	e := newTestEditor()
	a, _ := e.AddNode(flowdeck.TypeStart)
	b, _ := e.AddNode(flowdeck.TypeEnd)

	require.NoError(t, e.Select(a.ID))
	require.NoError(t, e.RemoveNode(b.ID))
	assert.Equal(t, a.ID, e.State().Selected)

	require.NoError(t, e.RemoveNode(a.ID))
	assert.Empty(t, e.State().Selected)
	assert.ErrorIs(t, e.RemoveNode(a.ID), flowdeck.ErrNodeNotFound)
}

func TestUpdateNode(t *testing.T) {
	e := newTestEditor()
	n, _ := e.AddNode(flowdeck.TypeURL)

	got, err := e.UpdateNode(n.ID, map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, flowdeck.URLConfig{URL: "https://example.com"}, got.Config)

	_, err = e.UpdateNode(n.ID, map[string]any{"nodeType": "telephone"})
	assert.ErrorIs(t, err, flowdeck.ErrTypeImmutable)
}

func TestLoadResetAndFlow(t *testing.T) {
	g := flowdeck.NewGraph()
	n := g.AddNode(flowdeck.TypeStart, flowdeck.Position{})

	e := newTestEditor(WithZoom(1.5))
	e.Load(flowdeck.Flow{ID: "f1", Name: "Support", Graph: g, UserID: "u1", UserName: "ana", UpdatedAt: fixedNow})

	s := e.State()
	assert.Equal(t, "f1", s.FlowID)
	assert.Equal(t, "Support", s.FlowName)
	assert.Equal(t, 1.5, s.Zoom)
	assert.False(t, s.Dirty)

	// Editing the session must not touch the caller's graph.
	_, err := e.AddNode(flowdeck.TypeEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	f := e.Flow()
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, "u1", f.UserID)
	assert.Equal(t, 2, f.Graph.Len())
	_, ok := f.Graph.Node(n.ID)
	assert.True(t, ok)

	e.Rename("Sales")
	e.MarkSaved(flowdeck.Flow{ID: "f1", Name: "Sales", UserID: "u1", UserName: "ana"})
	assert.False(t, e.State().Dirty)
	assert.Equal(t, "Sales", e.State().FlowName)

	e.Reset()
	s = e.State()
	assert.Empty(t, s.FlowID)
	assert.Equal(t, UntitledName, s.FlowName)
	assert.Equal(t, 1.5, s.Zoom)
	assert.Equal(t, 0, e.Graph().Len())
}
