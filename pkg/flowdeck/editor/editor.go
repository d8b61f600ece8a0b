// Package editor holds the editing state of one flow on the canvas:
// the graph, the current selection, the viewport zoom and the name under
// which the flow is saved.
//
// All state lives in a single Editor guarded by one mutex, so a selection
// can never point at a node that is no longer in the graph.
package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/catalog"
)

// ErrTypeDisabled indicates the node type conflicts with a node already in the flow.
var ErrTypeDisabled = errors.New("node type is disabled for this flow")

// FirstPosition is where the first node of an empty flow is placed.
var FirstPosition = flowdeck.Position{X: 199.09151622227262, Y: 80.00000000000006}

// HorizontalSpacing is the on-screen distance between consecutive nodes.
const HorizontalSpacing = 280.0

// UntitledName is the name of a flow that has not been named yet.
const UntitledName = "Untitled Flow"

// State is a snapshot of the editor.
type State struct {
	FlowID   string    `json:"flowId"`
	FlowName string    `json:"flowName"`
	Selected string    `json:"selected,omitempty"`
	Zoom     float64   `json:"zoom"`
	LastEdit time.Time `json:"lastEdit"`
	Dirty    bool      `json:"dirty"`
}

// Editor is the editing session of one flow. It is safe for concurrent use.
type Editor struct {
	mu    sync.Mutex
	graph *flowdeck.Graph
	state State
	owner flowdeck.User
	now   func() time.Time
}

// Option configures an Editor.
type Option func(*Editor)

// WithClock sets the clock used for LastEdit. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithZoom sets the initial viewport zoom. Non-positive values are ignored.
func WithZoom(z float64) Option {
	return func(e *Editor) {
		if z > 0 {
			e.state.Zoom = z
		}
	}
}

// New creates an editor holding an empty, untitled flow.
func New(opts ...Option) *Editor {
	e := &Editor{
		graph: flowdeck.NewGraph(),
		state: State{FlowName: UntitledName, Zoom: 1},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the session with a saved flow. The selection is cleared.
func (e *Editor) Load(f flowdeck.Flow) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := f.Graph
	if g == nil {
		g = flowdeck.NewGraph()
	}
	e.graph = g.Clone()
	e.owner = flowdeck.User{ID: f.UserID, Name: f.UserName}
	e.state = State{
		FlowID:   f.ID,
		FlowName: f.Name,
		Zoom:     e.state.Zoom,
		LastEdit: f.UpdatedAt,
	}
}

// Reset starts a new untitled flow, keeping the zoom.
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph = flowdeck.NewGraph()
	e.owner = flowdeck.User{}
	e.state = State{FlowName: UntitledName, Zoom: e.state.Zoom}
}

// State returns a snapshot of the editor state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Graph returns a copy of the graph being edited.
func (e *Editor) Graph() *flowdeck.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Clone()
}

// Flow returns the session as a flow ready to save.
func (e *Editor) Flow() flowdeck.Flow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return flowdeck.Flow{
		ID:       e.state.FlowID,
		Name:     e.state.FlowName,
		Graph:    e.graph.Clone(),
		UserID:   e.owner.ID,
		UserName: e.owner.Name,
	}
}

// MarkSaved records the id assigned by the store and clears Dirty.
func (e *Editor) MarkSaved(f flowdeck.Flow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.FlowID = f.ID
	e.state.FlowName = f.Name
	e.owner = flowdeck.User{ID: f.UserID, Name: f.UserName}
	e.state.Dirty = false
}

// Rename sets the flow name.
func (e *Editor) Rename(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.FlowName = name
	e.touch()
}

// SetZoom records the viewport zoom. Non-positive values are ignored.
func (e *Editor) SetZoom(z float64) {
	if z <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Zoom = z
}

// AddNode adds a node of type t next to the last node.
// A type that conflicts with the current nodes fails with ErrTypeDisabled.
func (e *Editor) AddNode(t flowdeck.NodeType) (flowdeck.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if catalog.IsTypeDisabled(t, e.graph.Nodes()) {
		return flowdeck.Node{}, fmt.Errorf("%w: %s", ErrTypeDisabled, t)
	}
	n := e.graph.AddNode(t, e.nextPosition())
	e.touch()
	return n, nil
}

func (e *Editor) nextPosition() flowdeck.Position {
	last, ok := e.graph.Last()
	if !ok {
		return FirstPosition
	}
	return flowdeck.Position{
		X: last.Position.X + HorizontalSpacing/e.state.Zoom,
		Y: last.Position.Y,
	}
}

// RemoveNode deletes a node and its edges, clearing the selection if it
// pointed at that node.
func (e *Editor) RemoveNode(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(id)
}

func (e *Editor) removeLocked(id string) error {
	if err := e.graph.RemoveNode(id); err != nil {
		return err
	}
	if e.state.Selected == id {
		e.state.Selected = ""
	}
	e.touch()
	return nil
}

// DeleteSelected removes the selected node. It reports whether a node was removed.
func (e *Editor) DeleteSelected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Selected == "" {
		return false
	}
	return e.removeLocked(e.state.Selected) == nil
}

// Select marks a node as selected.
func (e *Editor) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.graph.Node(id); !ok {
		return fmt.Errorf("%w: %s", flowdeck.ErrNodeNotFound, id)
	}
	e.state.Selected = id
	return nil
}

// Deselect clears the selection.
func (e *Editor) Deselect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Selected = ""
}

// Selected returns the selected node, if any.
func (e *Editor) Selected() (flowdeck.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Selected == "" {
		return flowdeck.Node{}, false
	}
	return e.graph.Node(e.state.Selected)
}

// Move changes a node's position.
func (e *Editor) Move(id string, pos flowdeck.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.graph.Move(id, pos); err != nil {
		return err
	}
	e.touch()
	return nil
}

// Connect adds an edge between two nodes.
func (e *Editor) Connect(source, target string) (flowdeck.Edge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	edge, err := e.graph.Connect(source, target)
	if err != nil {
		return flowdeck.Edge{}, err
	}
	e.touch()
	return edge, nil
}

// UpdateNode merges a partial configuration into a node.
func (e *Editor) UpdateNode(id string, patch map[string]any) (flowdeck.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.graph.UpdateNode(id, patch)
	if err != nil {
		return flowdeck.Node{}, err
	}
	e.touch()
	return n, nil
}

// DisabledTypes returns the types the add menu should grey out.
func (e *Editor) DisabledTypes() []flowdeck.NodeType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return catalog.DisabledTypes(e.graph.Nodes())
}

// Menu returns the add-node menu for the current flow.
func (e *Editor) Menu() []catalog.MenuItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return catalog.MenuFor(e.graph.Nodes())
}

// touch must be called with mu held.
func (e *Editor) touch() {
	e.state.LastEdit = e.now()
	e.state.Dirty = true
}
