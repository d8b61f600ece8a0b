// Package flowdeck models conversation flows: small directed graphs of typed
// nodes (Start, LLM prompt, knowledge retrieval, telephone, End) that a user
// composes on the dashboard canvas, saves by name, and runs.
//
// The graph itself carries no behavior. Which node types may coexist lives in
// the catalog package, editing state in editor, persistence in store, and
// running a flow in dispatch.
//
// # Basic Usage
//
//	g := flowdeck.NewGraph()
//	start := g.AddNode(flowdeck.TypeStart, flowdeck.Position{})
//	prompt := g.AddNode(flowdeck.TypeCustomPrompt, flowdeck.Position{X: 280})
//	_, err := g.Connect(start.ID, prompt.ID)
//
//	_, err = g.UpdateNode(prompt.ID, map[string]any{"prompt": "Answer in French."})
//
// # Node Configuration
//
// Each node type has its own configuration struct implementing NodeConfig.
// Partial updates are applied with UpdateNode; fields not present in the
// patch keep their value, and a node's type can never change.
//
// # Wire Format
//
// Graphs marshal to the canvas JSON shape used by stored flows:
//
//	{"id":"...","type":"custom","position":{"x":0,"y":0},
//	 "data":{"label":"Start","nodeType":"Start"}}
//
// Node types the catalog does not know decode into RawConfig and are written
// back unchanged.
package flowdeck
