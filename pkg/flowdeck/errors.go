package flowdeck

import "errors"

// Sentinel errors for graph editing.
var (
	// ErrNodeNotFound indicates an operation referenced a node id not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrTypeImmutable indicates an update tried to change a node's type.
	ErrTypeImmutable = errors.New("node type cannot be changed")
)
