// Package store persists flows and ingested documents.
//
// Nodes and edges are kept as two JSON strings per flow, in the canvas shape
// produced by flowdeck.EncodeParts, so flows saved by older dashboards load
// unchanged.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
)

// Store persists flows. Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts the flow when its ID is empty and replaces the saved
	// graph otherwise. The returned flow carries the assigned ID and times.
	Save(ctx context.Context, flow flowdeck.Flow) (flowdeck.Flow, error)

	// Load returns the flow with the given id, or ErrNotFound.
	Load(ctx context.Context, id string) (flowdeck.Flow, error)

	// Delete removes a flow. Deleting a missing flow is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the flows owned by ownerName, newest first.
	List(ctx context.Context, ownerName string) ([]flowdeck.FlowSummary, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Documents persists uploaded knowledge documents per user.
type Documents interface {
	// SaveDocument stores a document and returns it with its ID and creation time.
	SaveDocument(ctx context.Context, doc Document) (Document, error)

	// GetDocument returns the document including its content, or ErrNotFound.
	GetDocument(ctx context.Context, id string) (Document, error)

	// ListDocuments returns up to limit documents of userID, newest first,
	// without their content. A non-positive limit means no limit.
	ListDocuments(ctx context.Context, userID string, limit int) ([]Document, error)
}

// Document is an uploaded knowledge file.
type Document struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsCSV reports whether the document holds comma-separated values.
func (d Document) IsCSV() bool {
	return d.ContentType == "text/csv" || strings.HasSuffix(strings.ToLower(d.FileName), ".csv")
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the flow or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// notFound wraps ErrNotFound with the typed error the API maps to 404.
func notFound(resource, id string) error {
	return fmt.Errorf("%w: %w", ErrNotFound, fderrors.NotFound(resource, id))
}

// validateNew checks the fields required to insert a flow.
func validateNew(f flowdeck.Flow) error {
	if strings.TrimSpace(f.Name) == "" {
		return fderrors.Validation("", "name", "flow name is required")
	}
	return nil
}

// graphOf returns the flow's graph, treating nil as empty.
func graphOf(f flowdeck.Flow) *flowdeck.Graph {
	if f.Graph == nil {
		return flowdeck.NewGraph()
	}
	return f.Graph
}

// Option configures a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
}

// WithClock sets the clock used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used to report repaired stored data.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// decodeGraph decodes a stored graph, logging edges dropped for pointing
// at missing nodes.
func (o options) decodeGraph(flowID, nodes, edges string) (*flowdeck.Graph, error) {
	g, dropped, err := flowdeck.DecodeParts(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}
	for _, e := range dropped {
		o.logger.Warn("dropped dangling edge",
			slog.String("flow_id", flowID),
			slog.String("edge_id", e.ID),
			slog.String("source", e.Source),
			slog.String("target", e.Target),
		)
	}
	return g, nil
}
